package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arrivalwatch/internal/bootstrap"
	routinedto "arrivalwatch/internal/modules/routine/dto"
	"arrivalwatch/internal/platform/config"
	"arrivalwatch/internal/platform/geo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dataDir  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "arrivalwatch",
		Short:         "Proximity alarm that rings when you reach a destination",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", ".", "directory holding config.yaml, routines.yaml and the database")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log_level from config.yaml")

	root.AddCommand(newTrackCmd(&flags))
	root.AddCommand(newDaemonCmd(&flags))
	root.AddCommand(newAlarmCmd(&flags))
	root.AddCommand(newRoutineCmd(&flags))
	root.AddCommand(newFixCmd(&flags))
	root.AddCommand(newPhaseCmd(&flags))
	root.AddCommand(newCheckpointCmd(&flags))
	root.AddCommand(newTelemetryCmd(&flags))
	return root
}

func loadApp(ctx context.Context, flags *globalFlags, opts bootstrap.Options) (*bootstrap.App, error) {
	cfg, err := config.New(flags.dataDir)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel == "" {
		opts.LogLevel = flags.logLevel
	}
	return bootstrap.New(ctx, cfg, opts)
}

// withApp runs fn against an App without a location source and closes it.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := cmd.Context()
	app, err := loadApp(ctx, flags, bootstrap.Options{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	closeErr := app.Close(context.Background())
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func newAlarmCmd(flags *globalFlags) *cobra.Command {
	alarm := &cobra.Command{Use: "alarm", Short: "Inspect and resolve alarms"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent alarms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				alarms, err := app.TrackingCLI.ListAlarms(ctx, limit)
				if err != nil {
					return err
				}
				if len(alarms) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no alarms")
					return nil
				}
				for _, a := range alarms {
					state := "inactive"
					switch {
					case a.Active:
						state = "active"
					case a.Dismissed:
						state = "dismissed"
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%.5f,%.5f\tr=%s\t%s\n", a.ID, state, a.Source, a.Latitude, a.Longitude, geo.FormatDistance(a.RadiusM), a.Title)
				}
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum alarms to show")

	active := &cobra.Command{
		Use:   "active",
		Short: "Show the active alarm",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				a, err := app.TrackingCLI.ActiveAlarm(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id: %s\ntitle: %s\ntarget: %.5f,%.5f\nradius: %s\nsound: %s\nalert: %s\nsource: %s\ncreated: %s\n",
					a.ID, a.Title, a.Latitude, a.Longitude, geo.FormatDistance(a.RadiusM), a.SoundKey, a.AlertType, a.Source, a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
				if a.RoutineID != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "routine: %s\n", a.RoutineID)
				}
				return nil
			})
		},
	}

	dismiss := &cobra.Command{
		Use:   "dismiss [alarm-id]",
		Short: "Dismiss an alarm (defaults to the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.TrackingCLI.Dismiss(ctx, firstArg(args)); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "alarm dismissed")
				return nil
			})
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel [alarm-id]",
		Short: "Deactivate an alarm without dismissing it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.TrackingCLI.Cancel(ctx, firstArg(args)); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "alarm cancelled")
				return nil
			})
		},
	}

	alarm.AddCommand(list, active, dismiss, cancel)
	return alarm
}

func newRoutineCmd(flags *globalFlags) *cobra.Command {
	routine := &cobra.Command{Use: "routine", Short: "Recurring time-window alarms"}

	routine.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List routines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				routines, err := app.RoutineCLI.List(ctx)
				if err != nil {
					return err
				}
				if len(routines) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no routines")
					return nil
				}
				for _, r := range routines {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s-%s\tdays=%s\tenabled=%t\tin_window=%t\t%s\n", r.ID, r.Start, r.End, formatDays(r.Days), r.Enabled, r.InWindow, r.Name)
				}
				return nil
			})
		},
	})

	var input routinedto.RoutineInput
	var disabled bool
	add := &cobra.Command{
		Use:   "add --id <id> --lat <lat> --lon <lon> --start HH:MM --end HH:MM",
		Short: "Create or replace a routine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(input.ID) == "" {
				return fmt.Errorf("--id is required")
			}
			input.Enabled = !disabled
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.RoutineCLI.Add(ctx, input)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "routine saved: %s %s-%s days=%s\n", out.ID, out.Start, out.End, formatDays(out.Days))
				return nil
			})
		},
	}
	add.Flags().StringVar(&input.ID, "id", "", "routine id")
	add.Flags().StringVar(&input.Name, "name", "", "display name, also the alarm title")
	add.Flags().Float64Var(&input.Latitude, "lat", 0, "destination latitude")
	add.Flags().Float64Var(&input.Longitude, "lon", 0, "destination longitude")
	add.Flags().Float64Var(&input.RadiusM, "radius", 0, "arrival radius in meters (0 = default)")
	add.Flags().StringVar(&input.Start, "start", "", "window start HH:MM")
	add.Flags().StringVar(&input.End, "end", "", "window end HH:MM; earlier than start wraps past midnight")
	add.Flags().IntSliceVar(&input.Days, "days", nil, "weekdays 0-6 (0 = Sunday); empty means every day")
	add.Flags().StringVar(&input.SoundKey, "sound", "", "alert sound key")
	add.Flags().StringVar(&input.AlertType, "alert", "", "sound|vibration|sound_and_vibration")
	add.Flags().BoolVar(&disabled, "disabled", false, "save the routine disabled")

	routine.AddCommand(add)
	routine.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a routine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.RoutineCLI.Remove(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "routine removed: %s\n", args[0])
				return nil
			})
		},
	})
	routine.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Show which routine would run now, without a location source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				routines, err := app.RoutineCLI.List(ctx)
				if err != nil {
					return err
				}
				found := false
				for _, r := range routines {
					if r.Enabled && r.InWindow {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "in window: %s (%s-%s)\n", r.ID, r.Start, r.End)
						found = true
					}
				}
				if !found {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no routine in window")
				}
				return nil
			})
		},
	})
	routine.AddCommand(newRoutineEvaluateCmd(flags))
	return routine
}

func newPhaseCmd(flags *globalFlags) *cobra.Command {
	phase := &cobra.Command{Use: "phase", Short: "Phase calculator"}

	var distance, speed float64
	var from string
	var geofenceFailed bool
	decide := &cobra.Command{
		Use:   "decide --distance <m> --speed <km/h>",
		Short: "Show the phase and cooldown for a distance and speed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, app *bootstrap.App) error {
				out, err := app.TrackingCLI.DecidePhase(distance, speed, from, geofenceFailed)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "phase=%s cooldown=%s enter_active=%t\n", out.Phase, out.Cooldown, out.EnterActive)
				return nil
			})
		},
	}
	decide.Flags().Float64Var(&distance, "distance", 0, "distance to target in meters")
	decide.Flags().Float64Var(&speed, "speed", 0, "speed in km/h")
	decide.Flags().StringVar(&from, "from", "IDLE", "current phase")
	decide.Flags().BoolVar(&geofenceFailed, "geofence-failed", false, "region monitoring is unavailable")

	phase.AddCommand(decide)
	return phase
}

func newCheckpointCmd(flags *globalFlags) *cobra.Command {
	checkpoint := &cobra.Command{Use: "checkpoint", Short: "Route checkpoints"}
	checkpoint.AddCommand(&cobra.Command{
		Use:   "show <alarm-id>",
		Short: "Show the stored route checkpoint of an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				cp, err := app.CheckpointCLI.Show(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alarm: %s\nactive: %t\npoints: %d\ntraveled: %s\nlast checkpoint: %s\n",
					cp.AlarmID, cp.Active, cp.PointCount, geo.FormatDistance(cp.TraveledDistanceM), cp.LastCheckpointAt.Format("2006-01-02T15:04:05Z07:00"))
				if n := len(cp.Route); n > 0 {
					last := cp.Route[n-1]
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "last point: %.5f,%.5f at %s\n", last.Latitude, last.Longitude, last.Timestamp.Format("15:04:05"))
				}
				return nil
			})
		},
	})
	return checkpoint
}

func newTelemetryCmd(flags *globalFlags) *cobra.Command {
	telemetry := &cobra.Command{Use: "telemetry", Short: "Session telemetry"}

	var sessionID string
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the newest events of a session (default: latest session)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App) error {
				events, err := app.TelemetryCLI.Tail(ctx, sessionID, limit)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no telemetry")
					return nil
				}
				for _, e := range events {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%v\n", e.WrittenAt.Format("2006-01-02T15:04:05Z07:00"), e.SessionID, e.Type, e.Payload)
				}
				return nil
			})
		},
	}
	tail.Flags().StringVar(&sessionID, "session", "", "telemetry session id")
	tail.Flags().IntVar(&limit, "limit", 50, "maximum events")

	telemetry.AddCommand(tail)
	return telemetry
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func formatDays(days []int) string {
	if len(days) == 0 {
		return "daily"
	}
	names := [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d < len(names) {
			parts = append(parts, names[d])
		}
	}
	return strings.Join(parts, ",")
}

func alertWriter(cmd *cobra.Command, quiet bool) io.Writer {
	if quiet {
		return io.Discard
	}
	return cmd.OutOrStdout()
}
