package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	checkpointdto "arrivalwatch/internal/modules/checkpoint/dto"
	checkpointin "arrivalwatch/internal/modules/checkpoint/port/in"
	telemetryin "arrivalwatch/internal/modules/telemetry/port/in"
	"arrivalwatch/internal/modules/tracking/domain"
	trackingout "arrivalwatch/internal/modules/tracking/port/out"
	"arrivalwatch/internal/platform/clock"
	"arrivalwatch/internal/platform/config"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/platform/logging"
)

const (
	GeofenceTaskName = "arrivalwatch-geofence"
	LocationTaskName = "arrivalwatch-location"

	DestinationRegion = "destination"
)

// anyPhase disables the expected-phase check of a transition.
const anyPhase domain.Phase = ""

type Settings struct {
	MilestoneEvery   int
	PresenceInterval time.Duration
	Polling          domain.UpdateOptions
	Active           domain.UpdateOptions
	ResumeMaxAge     time.Duration
}

// DefaultSettings are the tracking settings of config.DefaultTuning.
func DefaultSettings() Settings {
	return SettingsFrom(config.DefaultTuning())
}

func SettingsFrom(t config.Tuning) Settings {
	return Settings{
		MilestoneEvery:   t.Tracking.MilestoneEvery,
		PresenceInterval: t.Tracking.PresenceInterval,
		Polling:          updateOptionsFrom(t.Tracking.Polling),
		Active:           updateOptionsFrom(t.Tracking.Active),
		ResumeMaxAge:     t.Checkpoint.ResumeMaxAge,
	}
}

func updateOptionsFrom(u config.UpdateTuning) domain.UpdateOptions {
	return domain.UpdateOptions{
		Accuracy:          domain.Accuracy(u.Accuracy),
		TimeInterval:      u.TimeInterval,
		DistanceIntervalM: u.DistanceIntervalM,
	}
}

type StartRequest struct {
	AlarmID string
	Title   string
	Target  domain.Coordinate
	RadiusM float64
	// InitialDistanceM skips the one-shot fix when set.
	InitialDistanceM *float64
}

func (r StartRequest) Validate() error {
	if strings.TrimSpace(r.AlarmID) == "" {
		return fmt.Errorf("alarm id is required")
	}
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if r.RadiusM <= 0 {
		return fmt.Errorf("radius must be positive")
	}
	return nil
}

// State is the mutable tracking state of one orchestrator. The zero value
// is not usable; use NewState.
type State struct {
	mu                  sync.Mutex
	phase               domain.Phase
	session             *domain.Session
	geofenceSetupFailed bool
	presenceShown       bool
	lastPresenceAt      time.Time
	generation          uint64
}

func NewState() *State {
	return &State{phase: domain.PhaseIdle}
}

type Deps struct {
	Clock       clock.Clock
	Calculator  domain.Calculator
	Settings    Settings
	Location    trackingout.LocationProvider
	Tasks       trackingout.TaskRegistry
	Dispatcher  trackingout.Dispatcher
	Player      trackingout.Player
	AppState    trackingout.AppState
	Alarms      trackingout.AlarmStore
	Checkpoints checkpointin.Usecase
	Telemetry   telemetryin.Usecase
	Logger      hclog.Logger
}

// Orchestrator drives one tracking session at a time through the phase
// state machine. It is safe for concurrent use.
//
// opMu serializes phase install and teardown, state.mu guards session
// fields and is never held across provider calls. Listeners run after both
// are released.
type Orchestrator struct {
	clock       clock.Clock
	calc        domain.Calculator
	settings    Settings
	location    trackingout.LocationProvider
	tasks       trackingout.TaskRegistry
	dispatcher  trackingout.Dispatcher
	player      trackingout.Player
	app         trackingout.AppState
	alarms      trackingout.AlarmStore
	checkpoints checkpointin.Usecase
	telemetry   telemetryin.Usecase
	logger      hclog.Logger

	state *State
	opMu  sync.Mutex

	listenersMu  sync.RWMutex
	listeners    map[int]domain.Listener
	nextListener int
}

func NewOrchestrator(state *State, deps Deps) (*Orchestrator, error) {
	if state == nil {
		state = NewState()
	}
	if deps.Clock == nil {
		deps.Clock = clock.SystemClock{}
	}
	if deps.Location == nil || deps.Tasks == nil || deps.Dispatcher == nil || deps.Player == nil ||
		deps.AppState == nil || deps.Alarms == nil || deps.Checkpoints == nil || deps.Telemetry == nil {
		return nil, fmt.Errorf("new orchestrator: %w: missing collaborator", apperrors.ErrInvalidInput)
	}
	if err := deps.Calculator.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("new orchestrator: %w", err)
	}
	o := &Orchestrator{
		clock:       deps.Clock,
		calc:        deps.Calculator,
		settings:    deps.Settings,
		location:    deps.Location,
		tasks:       deps.Tasks,
		dispatcher:  deps.Dispatcher,
		player:      deps.Player,
		app:         deps.AppState,
		alarms:      deps.Alarms,
		checkpoints: deps.Checkpoints,
		telemetry:   deps.Telemetry,
		logger:      logging.OrNull(deps.Logger).Named("orchestrator"),
		state:       state,
		listeners:   map[int]domain.Listener{},
	}
	if err := o.registerTasks(); err != nil {
		return nil, err
	}
	return o, nil
}

// registerTasks binds the background task handlers. Platforms may deliver
// a task before any session starts, so this happens at construction.
func (o *Orchestrator) registerTasks() error {
	if err := o.tasks.Register(GeofenceTaskName, o.handleGeofenceTask); err != nil {
		return fmt.Errorf("register geofence task: %w", err)
	}
	if err := o.tasks.Register(LocationTaskName, o.handleLocationTask); err != nil {
		return fmt.Errorf("register location task: %w", err)
	}
	return nil
}

func (o *Orchestrator) handleLocationTask(ctx context.Context, data domain.TaskData) error {
	if data.Err != nil {
		o.logger.Warn("location task reported an error", "error", data.Err)
		return nil
	}
	o.HandleLocations(ctx, data.Locations)
	return nil
}

func (o *Orchestrator) handleGeofenceTask(ctx context.Context, data domain.TaskData) error {
	if data.Err != nil {
		o.logger.Warn("geofence task reported an error", "error", data.Err)
		return nil
	}
	if data.Region != nil {
		o.HandleRegionEvent(ctx, *data.Region)
	}
	return nil
}

// StartTracking replaces any running session with a new one toward req.Target.
// Only a denied foreground permission is reported as a failure.
func (o *Orchestrator) StartTracking(ctx context.Context, req StartRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("start tracking: %w: %v", apperrors.ErrInvalidInput, err)
	}
	perm, err := o.location.RequestForegroundPermission(ctx)
	if err != nil {
		return fmt.Errorf("request foreground permission: %w", err)
	}
	if perm != domain.PermissionGranted {
		return fmt.Errorf("start tracking: %w", apperrors.ErrPermissionDenied)
	}
	if perm, err := o.location.RequestBackgroundPermission(ctx); err != nil || perm != domain.PermissionGranted {
		o.logger.Warn("background location unavailable, tracking while foregrounded only", "permission", perm, "error", err)
	}

	initial := o.initialDistance(ctx, req)

	o.opMu.Lock()
	previous := o.currentAlarmID()
	events := o.stopLocked(ctx)

	o.checkpoints.Reset()
	telemetryID := o.telemetry.StartSession()
	now := o.clock.Now()
	session := domain.NewSession(req.AlarmID, req.Title, req.Target, req.RadiusM, initial, now)
	session.TelemetryID = telemetryID
	if previous != req.AlarmID {
		o.resume(ctx, session, now)
	}

	st := o.state
	st.mu.Lock()
	st.generation++
	gen := st.generation
	st.session = session
	st.phase = domain.PhaseIdle
	st.geofenceSetupFailed = false
	st.presenceShown = false
	st.lastPresenceAt = time.Time{}
	started := o.snapshotLocked()
	st.mu.Unlock()

	o.telemetry.LogEvent("tracking_started", map[string]any{
		"alarm_id":           req.AlarmID,
		"initial_distance_m": finiteOrNil(initial),
		"radius_m":           req.RadiusM,
	})
	o.logger.Info("tracking started", "alarm_id", req.AlarmID, "distance", geo.FormatDistance(initial))
	events = append(events, domain.Event{Kind: domain.EventStarted, To: domain.PhaseIdle, Snapshot: started})

	next := o.calc.DeterminePhase(initial, 0, domain.PhaseIdle, false)
	if ev, ok := o.transitionLocked(ctx, gen, domain.PhaseIdle, next); ok {
		events = append(events, ev)
	}
	o.opMu.Unlock()

	o.emit(events)
	return nil
}

func (o *Orchestrator) initialDistance(ctx context.Context, req StartRequest) float64 {
	if req.InitialDistanceM != nil && !math.IsNaN(*req.InitialDistanceM) && *req.InitialDistanceM >= 0 {
		return *req.InitialDistanceM
	}
	sample, err := o.location.CurrentLocation(ctx)
	if err != nil {
		o.logger.Warn("initial fix unavailable, assuming far away", "error", err)
		return math.Inf(1)
	}
	return geo.DistanceM(sample.Latitude, sample.Longitude, req.Target.Latitude, req.Target.Longitude)
}

// resume restores route history from a recent active checkpoint of the same
// alarm, left behind by a process that stopped without finalizing.
func (o *Orchestrator) resume(ctx context.Context, session *domain.Session, now time.Time) {
	if o.settings.ResumeMaxAge <= 0 {
		return
	}
	cp, ok := o.checkpoints.Recover(ctx, session.AlarmID)
	if !ok || len(cp.Route) == 0 || now.Sub(cp.LastCheckpointAt) > o.settings.ResumeMaxAge {
		return
	}
	route := make([]domain.RoutePoint, 0, len(cp.Route))
	for _, pt := range cp.Route {
		route = append(route, domain.RoutePoint{Latitude: pt.Latitude, Longitude: pt.Longitude, Timestamp: pt.Timestamp})
	}
	session.Restore(route, cp.TraveledDistanceM)
	o.logger.Info("resumed route from checkpoint", "alarm_id", session.AlarmID, "points", len(route))
}

// StopAllTracking ends the current session. Calling it while idle is a no-op.
func (o *Orchestrator) StopAllTracking(ctx context.Context) {
	o.opMu.Lock()
	events := o.stopLocked(ctx)
	o.opMu.Unlock()
	o.emit(events)
}

// Shutdown stops tracking and releases the background task names.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.StopAllTracking(ctx)
	o.tasks.Unregister(GeofenceTaskName)
	o.tasks.Unregister(LocationTaskName)
}

func (o *Orchestrator) stopLocked(ctx context.Context) []domain.Event {
	st := o.state
	st.mu.Lock()
	session := st.session
	phase := st.phase
	presence := st.presenceShown
	active := session != nil || phase != domain.PhaseIdle
	var snap domain.Snapshot
	if active {
		snap = o.snapshotLocked()
	}
	st.generation++
	st.session = nil
	st.phase = domain.PhaseIdle
	st.geofenceSetupFailed = false
	st.presenceShown = false
	st.lastPresenceAt = time.Time{}
	st.mu.Unlock()

	if !active {
		return nil
	}
	if session != nil {
		o.checkpoints.Finalize(session.AlarmID)
		o.telemetry.LogEvent("tracking_stopped", map[string]any{
			"alarm_id":            session.AlarmID,
			"phase":               string(phase),
			"route_points":        snap.RoutePoints,
			"traveled_distance_m": snap.TraveledDistanceM,
			"arrived":             snap.ArrivalTriggered,
		})
		o.telemetry.EndSession()
	}
	o.teardown(ctx, phase)
	if presence {
		if err := o.dispatcher.StopPresence(ctx); err != nil {
			o.logger.Warn("stop presence", "error", err)
		}
	}
	for _, category := range []string{trackingout.CategoryTracking, trackingout.CategoryArrival} {
		if err := o.dispatcher.ClearCategory(ctx, category); err != nil {
			o.logger.Warn("clear alerts", "category", category, "error", err)
		}
	}
	o.logger.Info("tracking stopped", "alarm_id", snap.AlarmID, "phase", phase)

	snap.Active = false
	snap.Phase = domain.PhaseIdle
	return []domain.Event{{Kind: domain.EventStopped, From: phase, To: domain.PhaseIdle, Snapshot: snap}}
}

// transitionLocked moves to next. It does nothing when the session changed
// since gen was read, when the phase is no longer expect, or when the phase
// is already next. Callers hold opMu.
func (o *Orchestrator) transitionLocked(ctx context.Context, gen uint64, expect, next domain.Phase) (domain.Event, bool) {
	st := o.state
	st.mu.Lock()
	if st.generation != gen || st.session == nil || st.phase == next || (expect != anyPhase && st.phase != expect) {
		st.mu.Unlock()
		return domain.Event{}, false
	}
	from := st.phase
	target := st.session.Target
	st.mu.Unlock()

	o.teardown(ctx, from)
	installed := next
	fallback := false
	if err := o.install(ctx, next, target); err != nil {
		if next == domain.PhaseGeofencing {
			o.logger.Warn("region monitoring unavailable, falling back to adaptive polling", "error", err)
			fallback = true
			installed = domain.PhaseAdaptivePolling
			if err := o.install(ctx, installed, target); err != nil {
				o.logger.Error("install fallback phase", "phase", installed, "error", err)
			}
		} else {
			o.logger.Error("install phase", "phase", next, "error", err)
		}
	}

	st.mu.Lock()
	st.phase = installed
	if fallback {
		st.geofenceSetupFailed = true
	}
	// A far initial phase that degraded to polling stays without presence.
	showPresence := !st.presenceShown && (next == domain.PhaseAdaptivePolling || next == domain.PhaseActiveTracking)
	if showPresence {
		st.presenceShown = true
		st.lastPresenceAt = o.clock.Now()
	}
	snap := o.snapshotLocked()
	st.mu.Unlock()

	if showPresence {
		if err := o.dispatcher.StartPresence(ctx, presenceFor(snap)); err != nil {
			o.logger.Warn("start presence", "error", err)
		}
	}
	if installed == from {
		o.logger.Warn("phase unchanged after failed install", "phase", from, "requested", next)
		return domain.Event{}, false
	}
	o.telemetry.LogEvent("phase_transition", map[string]any{
		"from":                  string(from),
		"to":                    string(installed),
		"requested":             string(next),
		"geofence_setup_failed": snap.GeofenceSetupFailed,
		"distance_m":            finiteOrNil(snap.DistanceM),
	})
	o.logger.Info("phase transition", "from", from, "to", installed, "distance", geo.FormatDistance(snap.DistanceM))
	return domain.Event{Kind: domain.EventPhaseChanged, From: from, To: installed, Snapshot: snap}, true
}

func (o *Orchestrator) install(ctx context.Context, phase domain.Phase, target domain.Coordinate) error {
	switch phase {
	case domain.PhaseGeofencing:
		if !o.tasks.Registered(GeofenceTaskName) {
			return fmt.Errorf("install geofence: %w: task %s not registered", apperrors.ErrGeofenceUnavailable, GeofenceTaskName)
		}
		region := domain.Region{
			Identifier:    DestinationRegion,
			Center:        target,
			RadiusM:       o.calc.Thresholds.GeofenceRadiusM,
			NotifyOnEnter: true,
		}
		if err := o.location.StartRegionMonitoring(ctx, GeofenceTaskName, []domain.Region{region}); err != nil {
			return fmt.Errorf("start region monitoring: %w", err)
		}
	case domain.PhaseAdaptivePolling:
		if err := o.location.StartLocationUpdates(ctx, LocationTaskName, o.settings.Polling); err != nil {
			return fmt.Errorf("start polling updates: %w", err)
		}
	case domain.PhaseActiveTracking:
		if err := o.location.StartLocationUpdates(ctx, LocationTaskName, o.settings.Active); err != nil {
			return fmt.Errorf("start continuous updates: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) teardown(ctx context.Context, phase domain.Phase) {
	var err error
	switch phase {
	case domain.PhaseGeofencing:
		err = o.location.StopRegionMonitoring(ctx, GeofenceTaskName)
	case domain.PhaseAdaptivePolling, domain.PhaseActiveTracking:
		err = o.location.StopLocationUpdates(ctx, LocationTaskName)
	}
	if err != nil {
		o.logger.Warn("tear down phase", "phase", phase, "error", err)
	}
}

// HandleLocations processes provider samples in order.
func (o *Orchestrator) HandleLocations(ctx context.Context, samples []domain.LocationSample) {
	for _, sample := range samples {
		o.handleSample(ctx, sample, false)
	}
}

// HandleRegionEvent reacts to the destination region being entered while
// geofencing.
func (o *Orchestrator) HandleRegionEvent(ctx context.Context, event domain.RegionEvent) {
	if event.Kind != domain.RegionEnter || event.Identifier != DestinationRegion {
		return
	}
	st := o.state
	st.mu.Lock()
	gen := st.generation
	phase := st.phase
	active := st.session != nil
	st.mu.Unlock()
	if !active || phase != domain.PhaseGeofencing {
		return
	}
	o.logger.Debug("entered destination region")

	o.opMu.Lock()
	ev, ok := o.transitionLocked(ctx, gen, domain.PhaseGeofencing, domain.PhaseAdaptivePolling)
	o.opMu.Unlock()
	if ok {
		o.emit([]domain.Event{ev})
	}
}

// Refresh processes a one-shot fix as a full tick, as on foreground
// activation.
func (o *Orchestrator) Refresh(ctx context.Context) (domain.Snapshot, error) {
	if !o.Status().Active {
		return domain.Snapshot{}, apperrors.ErrNoActiveSession
	}
	sample, err := o.location.CurrentLocation(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("refresh location: %w", err)
	}
	o.handleSample(ctx, sample, true)
	return o.Status(), nil
}

func (o *Orchestrator) handleSample(ctx context.Context, sample domain.LocationSample, force bool) {
	st := o.state
	st.mu.Lock()
	session := st.session
	if session == nil || st.phase == domain.PhaseIdle || session.ArrivalTriggered() {
		st.mu.Unlock()
		return
	}
	gen := st.generation
	phase := st.phase
	if sample.Timestamp.IsZero() {
		sample.Timestamp = o.clock.Now()
	}
	now := sample.Timestamp
	distance := session.DistanceTo(sample)
	speed := session.SpeedFor(sample)

	if phase == domain.PhaseAdaptivePolling && !force && !session.LastProcessedAt.IsZero() {
		if now.Sub(session.LastProcessedAt) < o.calc.ComputeCooldown(distance, speed) {
			session.Append(sample.Point())
			st.mu.Unlock()
			o.checkpoints.MaybeCheckpoint(o.checkpointSnapshot(gen))
			return
		}
	}

	session.DistanceM = distance
	session.SpeedKmh = speed
	session.LastProcessedAt = now
	n := session.Append(sample.Point())
	milestone := o.settings.MilestoneEvery > 0 && n%o.settings.MilestoneEvery == 0
	presenceDue := st.lastPresenceAt.IsZero() || now.Sub(st.lastPresenceAt) >= o.settings.PresenceInterval
	if presenceDue {
		st.lastPresenceAt = now
	}
	failed := st.geofenceSetupFailed
	snap := o.snapshotLocked()
	st.mu.Unlock()

	o.checkpoints.MaybeCheckpoint(o.checkpointSnapshot(gen))
	if milestone {
		o.telemetry.LogEvent("milestone", map[string]any{
			"route_points":        n,
			"distance_m":          distance,
			"speed_kmh":           speed,
			"traveled_distance_m": snap.TraveledDistanceM,
			"phase":               string(phase),
		})
	}

	events := []domain.Event{{Kind: domain.EventTick, From: phase, To: phase, Snapshot: snap}}
	if distance <= session.RadiusM {
		arrival, handled := o.handleArrival(ctx, gen, session, distance)
		if handled {
			o.emit(append(events, arrival...))
			return
		}
	}

	if next := o.calc.DeterminePhase(distance, speed, phase, failed); next != phase {
		o.opMu.Lock()
		ev, ok := o.transitionLocked(ctx, gen, phase, next)
		o.opMu.Unlock()
		if ok {
			events = append(events, ev)
		}
	}
	if presenceDue {
		o.publishProgress(ctx, gen, snap)
	}
	o.emit(events)
}

func (o *Orchestrator) publishProgress(ctx context.Context, gen uint64, snap domain.Snapshot) {
	st := o.state
	st.mu.Lock()
	current := st.generation == gen
	shown := st.presenceShown
	st.mu.Unlock()
	if !current {
		return
	}
	var err error
	if shown {
		err = o.dispatcher.UpdatePresence(ctx, presenceFor(snap))
	} else {
		err = o.dispatcher.SendTrackingStatus(ctx, trackingout.TrackingStatus{
			Title:     snap.Title,
			DistanceM: snap.DistanceM,
			Elapsed:   snap.LastProcessedAt.Sub(snap.StartedAt),
		})
	}
	if err != nil {
		o.logger.Warn("publish progress", "error", err)
	}
}

// handleArrival fires the arrival alert at most once per session. handled is
// false when the arrival was skipped and the tick should continue.
func (o *Orchestrator) handleArrival(ctx context.Context, gen uint64, session *domain.Session, distanceM float64) (_ []domain.Event, handled bool) {
	if session.ArrivalTriggered() {
		return nil, true
	}
	alarm, err := o.alarms.Active(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			o.logger.Warn("load active alarm", "error", err)
		}
		o.logger.Debug("arrival skipped, no active alarm", "alarm_id", session.AlarmID)
		return nil, false
	}
	if alarm.ID != session.AlarmID || alarm.Dismissed {
		o.logger.Debug("arrival skipped, alarm no longer current", "alarm_id", session.AlarmID, "active_alarm_id", alarm.ID, "dismissed", alarm.Dismissed)
		return nil, false
	}
	if !session.LatchArrival() {
		return nil, true
	}

	st := o.state
	st.mu.Lock()
	if st.generation != gen {
		st.mu.Unlock()
		return nil, true
	}
	presence := st.presenceShown
	st.presenceShown = false
	st.mu.Unlock()

	if presence {
		if err := o.dispatcher.StopPresence(ctx); err != nil {
			o.logger.Warn("stop presence", "error", err)
		}
	}
	if err := o.player.Start(ctx, alarm.AlertType, alarm.SoundKey); err != nil {
		o.logger.Warn("start alarm sound", "error", err)
	}
	if o.app.IsForeground(ctx) {
		if err := o.app.NavigateToArrival(ctx, alarm.ID); err != nil {
			o.logger.Warn("navigate to arrival", "error", err)
		}
	} else {
		title := alarm.Title
		if title == "" {
			title = session.Title
		}
		if err := o.dispatcher.SendArrived(ctx, trackingout.ArrivedAlert{Title: title, AlarmID: alarm.ID, SoundKey: alarm.SoundKey}); err != nil {
			o.logger.Warn("send arrived alert", "error", err)
		}
	}
	o.telemetry.LogEvent("arrival", map[string]any{
		"alarm_id":   alarm.ID,
		"distance_m": distanceM,
		"radius_m":   session.RadiusM,
	})
	o.checkpoints.Finalize(alarm.ID)
	o.logger.Info("arrived", "alarm_id", alarm.ID)

	var events []domain.Event
	o.opMu.Lock()
	if ev, ok := o.transitionLocked(ctx, gen, anyPhase, domain.PhaseIdle); ok {
		events = append(events, ev)
	}
	o.opMu.Unlock()
	return append(events, domain.Event{Kind: domain.EventArrival, To: domain.PhaseIdle, Snapshot: o.Status()}), true
}

// Status returns a copy of the current state.
func (o *Orchestrator) Status() domain.Snapshot {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) currentAlarmID() string {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	if o.state.session == nil {
		return ""
	}
	return o.state.session.AlarmID
}

func (o *Orchestrator) snapshotLocked() domain.Snapshot {
	st := o.state
	snap := domain.Snapshot{Phase: st.phase, GeofenceSetupFailed: st.geofenceSetupFailed}
	session := st.session
	if session == nil {
		return snap
	}
	snap.Active = true
	snap.AlarmID = session.AlarmID
	snap.Title = session.Title
	snap.Target = session.Target
	snap.RadiusM = session.RadiusM
	snap.DistanceM = session.DistanceM
	snap.SpeedKmh = session.SpeedKmh
	snap.RoutePoints = session.RouteLen()
	snap.TraveledDistanceM = session.TraveledDistanceM
	snap.Progress = session.Progress()
	snap.ArrivalTriggered = session.ArrivalTriggered()
	snap.StartedAt = session.StartedAt
	snap.LastProcessedAt = session.LastProcessedAt
	return snap
}

// Subscribe registers listener and returns a function removing it.
// Listeners run on the goroutine that produced the event.
func (o *Orchestrator) Subscribe(listener domain.Listener) func() {
	o.listenersMu.Lock()
	id := o.nextListener
	o.nextListener++
	o.listeners[id] = listener
	o.listenersMu.Unlock()
	return func() {
		o.listenersMu.Lock()
		delete(o.listeners, id)
		o.listenersMu.Unlock()
	}
}

func (o *Orchestrator) emit(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	o.listenersMu.RLock()
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	listeners := make([]domain.Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, o.listeners[id])
	}
	o.listenersMu.RUnlock()
	for _, event := range events {
		for _, listener := range listeners {
			listener(event)
		}
	}
}

// checkpointSnapshot copies the route of the session started at gen. The
// copy is made only when the persister asks for it.
func (o *Orchestrator) checkpointSnapshot(gen uint64) func() (checkpointdto.CheckpointInput, bool) {
	return func() (checkpointdto.CheckpointInput, bool) {
		st := o.state
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.generation != gen || st.session == nil {
			return checkpointdto.CheckpointInput{}, false
		}
		return checkpointInput(st.session), true
	}
}

func checkpointInput(session *domain.Session) checkpointdto.CheckpointInput {
	route := session.Route()
	points := make([]checkpointdto.Point, 0, len(route))
	for _, pt := range route {
		points = append(points, checkpointdto.Point{Latitude: pt.Latitude, Longitude: pt.Longitude, Timestamp: pt.Timestamp})
	}
	return checkpointdto.CheckpointInput{
		AlarmID:           session.AlarmID,
		Route:             points,
		TraveledDistanceM: session.TraveledDistanceM,
	}
}

func presenceFor(snap domain.Snapshot) trackingout.Presence {
	return trackingout.Presence{
		Title:    snap.Title,
		Subtitle: geo.FormatDistance(snap.DistanceM) + " to go",
		Progress: snap.Progress,
	}
}

// finiteOrNil keeps +Inf out of JSON payloads.
func finiteOrNil(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}
