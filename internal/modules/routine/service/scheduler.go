package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"arrivalwatch/internal/modules/routine/domain"
	"arrivalwatch/internal/modules/routine/dto"
	routineout "arrivalwatch/internal/modules/routine/port/out"
	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	trackingin "arrivalwatch/internal/modules/tracking/port/in"
	"arrivalwatch/internal/platform/clock"
	"arrivalwatch/internal/platform/config"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/platform/logging"
)

type Settings struct {
	Debounce time.Duration
	Interval time.Duration
	Location *time.Location
}

// State is a copy of the scheduler's runtime markers.
type State struct {
	ActiveRoutineID string
	ActiveAlarmID   string
	Fulfilled       map[string]bool
	LastEvaluatedAt time.Time
}

// Scheduler starts and stops routine tracking from wall-clock time. Manual
// alarms always win: while one is active evaluation is suspended.
type Scheduler struct {
	clock    clock.Clock
	store    routineout.Store
	tracking trackingin.Usecase
	settings Settings
	logger   hclog.Logger

	evalMu sync.Mutex

	mu            sync.Mutex
	lastEval      time.Time
	fulfilled     map[string]bool
	activeRoutine string
	activeAlarm   string

	poke        chan struct{}
	unsubscribe func()
}

func NewScheduler(clk clock.Clock, store routineout.Store, tracking trackingin.Usecase, settings Settings, logger hclog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if settings.Interval <= 0 {
		settings.Interval = config.DefaultTuning().Routines.EvaluateInterval
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}
	s := &Scheduler{
		clock:     clk,
		store:     store,
		tracking:  tracking,
		settings:  settings,
		logger:    logging.OrNull(logger).Named("routines"),
		fulfilled: map[string]bool{},
		poke:      make(chan struct{}, 1),
	}
	s.unsubscribe = tracking.Subscribe(s.onEvent)
	return s
}

// Close detaches the scheduler from tracking events.
func (s *Scheduler) Close() {
	s.unsubscribe()
}

func (s *Scheduler) onEvent(event trackingdto.EventOutput) {
	switch event.Kind {
	case trackingdto.EventArrival:
		s.mu.Lock()
		if s.activeAlarm != "" && event.Status.AlarmID == s.activeAlarm {
			s.logger.Info("routine fulfilled", "routine_id", s.activeRoutine)
			s.fulfilled[s.activeRoutine] = true
			s.activeRoutine, s.activeAlarm = "", ""
		}
		s.mu.Unlock()
	case trackingdto.EventTick:
		select {
		case s.poke <- struct{}{}:
		default:
		}
	}
}

// Now returns the scheduler's wall-clock time in its configured zone.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now().In(s.settings.Location)
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	fulfilled := make(map[string]bool, len(s.fulfilled))
	for id, v := range s.fulfilled {
		fulfilled[id] = v
	}
	return State{
		ActiveRoutineID: s.activeRoutine,
		ActiveAlarmID:   s.activeAlarm,
		Fulfilled:       fulfilled,
		LastEvaluatedAt: s.lastEval,
	}
}

// Run evaluates right away, then on every interval and whenever a tracking
// tick pokes it, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.settings.Interval)
	defer ticker.Stop()
	for {
		if out, err := s.Evaluate(ctx); err != nil {
			s.logger.Warn("evaluate routines", "error", err)
		} else if out.Action != dto.ActionNone && out.Action != dto.ActionDebounced {
			s.logger.Debug("routines evaluated", "action", out.Action, "routine_id", out.RoutineID)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.poke:
		}
	}
}

// Evaluate is debounced: calls closer than the debounce interval to the
// previous evaluation return ActionDebounced without doing anything.
func (s *Scheduler) Evaluate(ctx context.Context) (dto.EvaluationOutput, error) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	now := s.Now()
	s.mu.Lock()
	if !s.lastEval.IsZero() && now.Sub(s.lastEval) < s.settings.Debounce {
		s.mu.Unlock()
		return dto.EvaluationOutput{Action: dto.ActionDebounced}, nil
	}
	s.lastEval = now
	s.mu.Unlock()

	return s.evaluate(ctx, now)
}

func (s *Scheduler) evaluate(ctx context.Context, now time.Time) (dto.EvaluationOutput, error) {
	routines, err := s.store.List(ctx)
	if err != nil {
		return dto.EvaluationOutput{}, fmt.Errorf("list routines: %w", err)
	}
	byID := make(map[string]domain.Routine, len(routines))
	for _, routine := range routines {
		byID[routine.ID] = routine
	}
	active, err := s.tracking.ActiveAlarm(ctx)
	hasActive := err == nil
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return dto.EvaluationOutput{}, fmt.Errorf("load active alarm: %w", err)
	}
	// A manual alarm freezes routine state, markers included.
	if hasActive && active.Source == trackingdto.SourceManual {
		return dto.EvaluationOutput{Action: dto.ActionSuspended, AlarmID: active.ID}, nil
	}
	status := s.tracking.Status(ctx)

	s.mu.Lock()
	for id := range s.fulfilled {
		if routine, ok := byID[id]; !ok || !routine.InWindow(now) {
			delete(s.fulfilled, id)
		}
	}
	if s.activeAlarm != "" && (!hasActive || active.ID != s.activeAlarm) {
		// Dismissed, cancelled or replaced outside the scheduler.
		s.logger.Info("routine alarm ended elsewhere", "routine_id", s.activeRoutine, "alarm_id", s.activeAlarm)
		if routine, ok := byID[s.activeRoutine]; ok && routine.InWindow(now) {
			s.fulfilled[s.activeRoutine] = true
		}
		s.activeRoutine, s.activeAlarm = "", ""
	}
	if s.activeAlarm == "" && hasActive && active.Source == trackingdto.SourceRoutine &&
		status.Active && status.AlarmID == active.ID && !status.ArrivalTriggered && !s.fulfilled[active.RoutineID] {
		if _, ok := byID[active.RoutineID]; ok {
			s.activeRoutine, s.activeAlarm = active.RoutineID, active.ID
		}
	}
	activeRoutine, activeAlarm := s.activeRoutine, s.activeAlarm
	var match *domain.Routine
	for i := range routines {
		if routines[i].Matches(now) && !s.fulfilled[routines[i].ID] {
			match = &routines[i]
			break
		}
	}
	s.mu.Unlock()

	action := dto.ActionStarted
	if activeRoutine != "" {
		if match != nil && match.ID == activeRoutine {
			return dto.EvaluationOutput{Action: dto.ActionNone, RoutineID: activeRoutine, AlarmID: activeAlarm}, nil
		}
		if err := s.tracking.Cancel(ctx, activeAlarm); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return dto.EvaluationOutput{}, fmt.Errorf("stop routine %s: %w", activeRoutine, err)
		}
		s.mu.Lock()
		s.activeRoutine, s.activeAlarm = "", ""
		s.mu.Unlock()
		s.logger.Info("routine window left", "routine_id", activeRoutine)
		if match == nil {
			return dto.EvaluationOutput{Action: dto.ActionStopped, RoutineID: activeRoutine, AlarmID: activeAlarm}, nil
		}
		action = dto.ActionSwitched
	}
	if match == nil {
		return dto.EvaluationOutput{Action: dto.ActionNone}, nil
	}
	alarmID, err := s.start(ctx, *match)
	if err != nil {
		return dto.EvaluationOutput{}, err
	}
	return dto.EvaluationOutput{Action: action, RoutineID: match.ID, AlarmID: alarmID}, nil
}

func (s *Scheduler) start(ctx context.Context, routine domain.Routine) (string, error) {
	title := routine.Name
	if title == "" {
		title = routine.ID
	}
	input := trackingdto.CreateAlarmInput{
		Title:     title,
		Latitude:  routine.Latitude,
		Longitude: routine.Longitude,
		RadiusM:   routine.RadiusM,
		SoundKey:  routine.SoundKey,
		AlertType: routine.AlertType,
		Source:    trackingdto.SourceRoutine,
		RoutineID: routine.ID,
	}
	if fix, err := s.tracking.CurrentFix(ctx); err != nil {
		s.logger.Warn("routine fix unavailable", "routine_id", routine.ID, "error", err)
	} else {
		distance := geo.DistanceM(fix.Latitude, fix.Longitude, routine.Latitude, routine.Longitude)
		input.InitialDistanceM = &distance
	}
	alarm, err := s.tracking.CreateAlarm(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start routine %s: %w", routine.ID, err)
	}
	s.mu.Lock()
	s.activeRoutine, s.activeAlarm = routine.ID, alarm.ID
	s.mu.Unlock()
	s.logger.Info("routine started", "routine_id", routine.ID, "alarm_id", alarm.ID)
	return alarm.ID, nil
}
