package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arrivalwatch/internal/bootstrap"
	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/platform/geo"
)

// sourceFlags pick the location source of long-running commands.
type sourceFlags struct {
	replay     string
	bridge     string
	speedup    float64
	foreground bool
	quiet      bool
}

func (s *sourceFlags) bind(cmd *cobra.Command, foreground bool) {
	cmd.Flags().StringVar(&s.replay, "replay", "", "CSV track (timestamp,lat,lon[,speed_mps,accuracy_m]) to replay")
	cmd.Flags().StringVar(&s.bridge, "bridge", "", "location bridge plugin binary (overrides bridge.binary)")
	cmd.Flags().Float64Var(&s.speedup, "speedup", 1, "replay speed factor")
	cmd.Flags().BoolVar(&s.foreground, "foreground", foreground, "treat the process as foregrounded (arrival navigates instead of notifying)")
	cmd.Flags().BoolVar(&s.quiet, "quiet", false, "no terminal bell or arrival banner")
}

func (s *sourceFlags) options(cmd *cobra.Command, logOut io.Writer) bootstrap.Options {
	return bootstrap.Options{
		ReplayPath:  s.replay,
		Bridge:      s.bridge,
		Speedup:     s.speedup,
		Foreground:  s.foreground,
		LogOutput:   logOut,
		AlertOutput: alertWriter(cmd, s.quiet),
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newTrackCmd(flags *globalFlags) *cobra.Command {
	var source sourceFlags
	var input trackingdto.CreateAlarmInput
	var simulateM, simulateSpeed float64
	var watch, keep bool

	cmd := &cobra.Command{
		Use:   "track --lat <lat> --lon <lon>",
		Short: "Create an alarm and track toward it until arrival",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
				return fmt.Errorf("--lat and --lon are required")
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			opts := source.options(cmd, cmd.ErrOrStderr())
			if source.replay == "" {
				opts.Simulate = &bootstrap.Simulation{
					TargetLatitude:  input.Latitude,
					TargetLongitude: input.Longitude,
					DistanceM:       simulateM,
					SpeedMPS:        simulateSpeed,
				}
			}
			var logFile *os.File
			if watch {
				// The TUI owns the terminal; logs go to a file instead.
				f, err := os.CreateTemp("", "arrivalwatch-*.log")
				if err != nil {
					return fmt.Errorf("create log file: %w", err)
				}
				logFile = f
				defer logFile.Close()
				opts.LogOutput = logFile
				opts.AlertOutput = io.Discard
			}
			app, err := loadApp(ctx, flags, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.Background()) }()

			arrived := make(chan trackingdto.StatusOutput, 1)
			unsubscribe := app.TrackingCLI.Subscribe(func(event trackingdto.EventOutput) {
				if event.Kind == trackingdto.EventArrival {
					select {
					case arrived <- event.Status:
					default:
					}
				}
			})
			defer unsubscribe()

			alarm, err := app.TrackingCLI.Track(ctx, input)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracking %q (%s) via %s\n", alarm.Title, alarm.ID, app.SourceName)

			if watch {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "logs: %s\n", logFile.Name())
				if err := bootstrap.RunWatch(ctx, app); err != nil {
					return err
				}
				return finishTrack(cmd, app, alarm.ID, keep)
			}
			return followTrack(ctx, cmd, app, alarm.ID, arrived, keep)
		},
	}
	cmd.Flags().Float64Var(&input.Latitude, "lat", 0, "destination latitude")
	cmd.Flags().Float64Var(&input.Longitude, "lon", 0, "destination longitude")
	cmd.Flags().Float64Var(&input.RadiusM, "radius", 0, "arrival radius in meters (0 = default)")
	cmd.Flags().StringVar(&input.Title, "title", "", "alarm title")
	cmd.Flags().StringVar(&input.SoundKey, "sound", "", "alert sound key")
	cmd.Flags().StringVar(&input.AlertType, "alert", "", "sound|vibration|sound_and_vibration")
	cmd.Flags().Float64Var(&simulateM, "simulate-distance", 3000, "start distance of the synthesized approach when no --replay is set")
	cmd.Flags().Float64Var(&simulateSpeed, "simulate-speed", 8, "speed in m/s of the synthesized approach")
	cmd.Flags().BoolVar(&watch, "watch", false, "show the live terminal view")
	cmd.Flags().BoolVar(&keep, "keep", false, "leave the alarm active on interrupt so `daemon` can resume it")
	source.bind(cmd, true)
	return cmd
}

// followTrack prints status lines until arrival or interrupt.
func followTrack(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, alarmID string, arrived <-chan trackingdto.StatusOutput, keep bool) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return finishTrack(cmd, app, alarmID, keep)
		case status := <-arrived:
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "arrived after %s, %s traveled; ctrl-c to dismiss\n",
				time.Since(status.StartedAt).Round(time.Second), geo.FormatDistance(status.TraveledDistanceM))
			<-ctx.Done()
			return finishTrack(cmd, app, alarmID, false)
		case <-ticker.C:
			status := app.TrackingCLI.Status(ctx)
			if !status.Active {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "tracking ended")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s to go\t%.1f km/h\t%d points\n",
				status.Phase, geo.FormatDistance(status.DistanceM), status.SpeedKmh, status.RoutePoints)
		}
	}
}

func finishTrack(cmd *cobra.Command, app *bootstrap.App, alarmID string, keep bool) error {
	ctx := context.Background()
	if keep {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alarm %s left active\n", alarmID)
		return nil
	}
	err := app.TrackingCLI.Dismiss(ctx, alarmID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alarm %s dismissed\n", alarmID)
	return nil
}

func newDaemonCmd(flags *globalFlags) *cobra.Command {
	var source sourceFlags
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Resume the active alarm and run routines until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := loadApp(ctx, flags, source.options(cmd, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.Background()) }()

			unsubscribe := app.TrackingCLI.Subscribe(func(event trackingdto.EventOutput) {
				switch event.Kind {
				case trackingdto.EventPhaseChanged:
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s phase %s -> %s\n", event.Status.Title, event.From, event.To)
				case trackingdto.EventArrival:
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s arrived; dismiss with `arrivalwatch alarm dismiss`\n", event.Status.Title)
				}
			})
			defer unsubscribe()

			alarm, resumed, err := app.TrackingCLI.Resume(ctx)
			if err != nil {
				app.Logger.Warn("resume tracking", "error", err)
			} else if resumed {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "resumed %q (%s)\n", alarm.Title, alarm.ID)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "daemon running via %s\n", app.SourceName)
			return app.RoutineCLI.Run(ctx)
		},
	}
	source.bind(cmd, false)
	return cmd
}

func newRoutineEvaluateCmd(flags *globalFlags) *cobra.Command {
	var source sourceFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one routine evaluation against a location source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, flags, source.options(cmd, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.Background()) }()

			out, err := app.RoutineCLI.Check(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "action=%s routine=%s alarm=%s\n", out.Action, out.RoutineID, out.AlarmID)
			return nil
		},
	}
	source.bind(cmd, false)
	return cmd
}

func newFixCmd(flags *globalFlags) *cobra.Command {
	var source sourceFlags
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Print one location fix from the configured source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, flags, source.options(cmd, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.Background()) }()

			fix, err := app.TrackingCLI.CurrentFix(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%.6f,%.6f\tspeed=%.1f km/h\taccuracy=%.0f m\tat=%s\tsource=%s\n",
				fix.Latitude, fix.Longitude, geo.KmhFromMPS(fix.SpeedMPS), fix.AccuracyM, fix.Timestamp.Format("15:04:05"), app.SourceName)
			return nil
		},
	}
	source.bind(cmd, false)
	return cmd
}
