package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"

	checkpointinadapter "arrivalwatch/internal/modules/checkpoint/adapter/in"
	checkpointoutadapter "arrivalwatch/internal/modules/checkpoint/adapter/out"
	checkpointdomain "arrivalwatch/internal/modules/checkpoint/domain"
	checkpointservice "arrivalwatch/internal/modules/checkpoint/service"
	routineinadapter "arrivalwatch/internal/modules/routine/adapter/in"
	routineoutadapter "arrivalwatch/internal/modules/routine/adapter/out"
	routineservice "arrivalwatch/internal/modules/routine/service"
	routineusecase "arrivalwatch/internal/modules/routine/usecase"
	telemetryinadapter "arrivalwatch/internal/modules/telemetry/adapter/in"
	telemetryoutadapter "arrivalwatch/internal/modules/telemetry/adapter/out"
	telemetryservice "arrivalwatch/internal/modules/telemetry/service"
	trackinginadapter "arrivalwatch/internal/modules/tracking/adapter/in"
	trackingoutadapter "arrivalwatch/internal/modules/tracking/adapter/out"
	trackingdomain "arrivalwatch/internal/modules/tracking/domain"
	trackingservice "arrivalwatch/internal/modules/tracking/service"
	trackingusecase "arrivalwatch/internal/modules/tracking/usecase"
	"arrivalwatch/internal/platform/besteffort"
	"arrivalwatch/internal/platform/clock"
	"arrivalwatch/internal/platform/config"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/platform/id"
	"arrivalwatch/internal/platform/logging"
	"arrivalwatch/internal/platform/sqlitedb"
	"arrivalwatch/internal/platform/track"
	"arrivalwatch/internal/platform/tx"
	uiapp "arrivalwatch/internal/ui/app"
)

// Simulation describes the synthesized approach used when neither a replay
// file nor a bridge binary is given.
type Simulation struct {
	TargetLatitude  float64
	TargetLongitude float64
	DistanceM       float64
	SpeedMPS        float64
}

// Options select the location source and host behaviour of one process.
type Options struct {
	// ReplayPath is a CSV track replayed in process, or handed to the bridge
	// when Bridge is set.
	ReplayPath string
	// Bridge overrides the bridge binary from config.yaml.
	Bridge  string
	Speedup float64
	// Simulate enables a synthesized track when no other source is set.
	Simulate   *Simulation
	Foreground bool
	LogLevel   string
	LogOutput  io.Writer
	// AlertOutput receives the terminal bell and arrival banners.
	AlertOutput io.Writer
}

type App struct {
	TrackingCLI   trackinginadapter.CLIHandler
	RoutineCLI    routineinadapter.CLIHandler
	CheckpointCLI checkpointinadapter.CLIHandler
	TelemetryCLI  telemetryinadapter.CLIHandler
	Logger        hclog.Logger
	SourceName    string

	closers []func(ctx context.Context) error
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		return nil, err
	}
	level := tuning.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logOut := opts.LogOutput
	if logOut == nil {
		logOut = os.Stderr
	}
	logger := logging.New(level, logOut)
	location, err := tuning.Routines.Location()
	if err != nil {
		return nil, err
	}

	app := &App{Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	db, err := sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app.onClose(func(context.Context) error { return db.Close() })

	// Closers run in reverse, so the queue drains before the db closes.
	queue := besteffort.NewQueue(logger.Named("besteffort"), 256)
	app.onClose(func(context.Context) error {
		queue.Close()
		return nil
	})

	clk := clock.SystemClock{}
	ids := id.UUID{}
	calc := trackingdomain.NewCalculator(trackingdomain.ThresholdsFrom(tuning.Phase))

	checkpoints := checkpointservice.NewPersister(clk, checkpointoutadapter.NewSQLiteCheckpointStore(db), queue,
		checkpointdomain.Policy{PointThreshold: tuning.Checkpoint.PointThreshold, Interval: tuning.Checkpoint.Interval}, logger)
	telemetry := telemetryservice.NewLogger(clk, ids, telemetryoutadapter.NewSQLiteTelemetryStore(db), queue, logger)
	alarms := trackingoutadapter.NewSQLiteAlarmStore(db, tx.NewSQLManager(db))

	tasks := trackingoutadapter.NewMemoryTaskRegistry()
	source, sourceName, err := app.openSource(ctx, clk, tuning, opts, logger)
	if err != nil {
		return nil, err
	}
	app.SourceName = sourceName
	provider := trackingoutadapter.NewPollingProvider(source, tasks, tuning.Bridge.PollInterval, logger)
	app.onClose(func(context.Context) error { return provider.Close() })

	player := trackingoutadapter.NewBellPlayer(opts.AlertOutput, 2*time.Second)
	orch, err := trackingservice.NewOrchestrator(trackingservice.NewState(), trackingservice.Deps{
		Clock:       clk,
		Calculator:  calc,
		Settings:    trackingservice.SettingsFrom(tuning),
		Location:    provider,
		Tasks:       tasks,
		Dispatcher:  trackingoutadapter.NewLogDispatcher(logger, opts.AlertOutput),
		Player:      player,
		AppState:    trackingoutadapter.NewStaticAppState(opts.Foreground),
		Alarms:      alarms,
		Checkpoints: checkpoints,
		Telemetry:   telemetry,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	app.onClose(func(ctx context.Context) error {
		orch.Shutdown(ctx)
		return nil
	})

	trackingUC := trackingusecase.NewInteractor(orch, calc, alarms, player, provider, clk, ids, trackingusecase.Defaults{
		RadiusM:  tuning.Tracking.DefaultRadiusM,
		SoundKey: tuning.Tracking.DefaultSoundKey,
	})

	routineStore := routineoutadapter.NewYAMLRoutineStore(cfg.RoutinesPath)
	scheduler := routineservice.NewScheduler(clk, routineStore, trackingUC, routineservice.Settings{
		Debounce: tuning.Routines.Debounce,
		Interval: tuning.Routines.EvaluateInterval,
		Location: location,
	}, logger)
	app.onClose(func(context.Context) error {
		scheduler.Close()
		return nil
	})

	app.TrackingCLI = trackinginadapter.NewCLIHandler(trackingUC)
	app.RoutineCLI = routineinadapter.NewCLIHandler(routineusecase.NewInteractor(scheduler, routineStore))
	app.CheckpointCLI = checkpointinadapter.NewCLIHandler(checkpoints)
	app.TelemetryCLI = telemetryinadapter.NewCLIHandler(telemetry)
	return app, nil
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything New acquired, newest first. It is safe to call
// more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openSource(ctx context.Context, clk clock.Clock, tuning config.Tuning, opts Options, logger hclog.Logger) (trackingoutadapter.FixSource, string, error) {
	binary := tuning.Bridge.Binary
	if opts.Bridge != "" {
		binary = opts.Bridge
	}
	switch {
	case binary != "":
		var env []string
		if opts.ReplayPath != "" {
			env = append(env, "ARRIVALWATCH_BRIDGE_TRACK="+opts.ReplayPath)
		}
		if opts.Speedup > 0 {
			env = append(env, "ARRIVALWATCH_BRIDGE_SPEEDUP="+strconv.FormatFloat(opts.Speedup, 'f', -1, 64))
		}
		if opts.Simulate != nil {
			env = append(env, fmt.Sprintf("ARRIVALWATCH_BRIDGE_TARGET=%f,%f", opts.Simulate.TargetLatitude, opts.Simulate.TargetLongitude))
		}
		bridge, err := trackingoutadapter.OpenBridgeSource(ctx, binary, env, logger)
		if err != nil {
			return nil, "", err
		}
		a.onClose(func(context.Context) error { return bridge.Close() })
		meta := bridge.Metadata()
		return bridge, fmt.Sprintf("bridge %s@%s (%s)", meta.Name, meta.Version, meta.Source), nil

	case opts.ReplayPath != "":
		points, err := track.Load(opts.ReplayPath)
		if err != nil {
			return nil, "", err
		}
		replay, err := track.NewReplay(points, clk.Now(), opts.Speedup)
		if err != nil {
			return nil, "", err
		}
		return trackingoutadapter.NewReplaySource(replay, clk), "replay " + opts.ReplayPath, nil

	case opts.Simulate != nil:
		sim := *opts.Simulate
		if sim.DistanceM <= 0 {
			sim.DistanceM = 3000
		}
		if sim.SpeedMPS <= 0 {
			sim.SpeedMPS = 8
		}
		startLat, startLon := geo.Offset(sim.TargetLatitude, sim.TargetLongitude, -sim.DistanceM, 0)
		now := clk.Now()
		points := track.Synthesize(startLat, startLon, sim.TargetLatitude, sim.TargetLongitude, sim.SpeedMPS, time.Second, now)
		replay, err := track.NewReplay(points, now, opts.Speedup)
		if err != nil {
			return nil, "", err
		}
		return trackingoutadapter.NewReplaySource(replay, clk), fmt.Sprintf("simulated %s approach", geo.FormatDistance(sim.DistanceM)), nil

	default:
		return trackingoutadapter.UnavailableSource{}, "none", nil
	}
}

// RunWatch shows the live tracking view until the user quits.
func RunWatch(ctx context.Context, app *App) error {
	model := uiapp.NewModel(ctx, app.TrackingCLI, app.SourceName)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
