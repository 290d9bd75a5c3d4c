package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	checkpointdto "arrivalwatch/internal/modules/checkpoint/dto"
	telemetrydto "arrivalwatch/internal/modules/telemetry/dto"
	"arrivalwatch/internal/modules/tracking/domain"
	trackingout "arrivalwatch/internal/modules/tracking/port/out"
	"arrivalwatch/internal/modules/tracking/service"
	"arrivalwatch/internal/platform/clock"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/platform/geo"
)

var target = domain.Coordinate{Latitude: 52.5200, Longitude: 13.4050}

// sampleAt places a sample distanceM north of the target.
func sampleAt(distanceM, speedKmh float64, at time.Time) domain.LocationSample {
	lat, lon := geo.Offset(target.Latitude, target.Longitude, distanceM, 0)
	return domain.LocationSample{Latitude: lat, Longitude: lon, SpeedMPS: geo.MPSFromKmh(speedKmh), AccuracyM: 5, Timestamp: at}
}

type fakeLocation struct {
	mu          sync.Mutex
	foreground  domain.Permission
	background  domain.Permission
	current     *domain.LocationSample
	regionErr   error
	calls       []string
	lastOptions domain.UpdateOptions
}

func newFakeLocation() *fakeLocation {
	return &fakeLocation{foreground: domain.PermissionGranted, background: domain.PermissionGranted}
}

func (f *fakeLocation) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeLocation) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeLocation) RequestForegroundPermission(context.Context) (domain.Permission, error) {
	return f.foreground, nil
}

func (f *fakeLocation) RequestBackgroundPermission(context.Context) (domain.Permission, error) {
	return f.background, nil
}

func (f *fakeLocation) CurrentLocation(context.Context) (domain.LocationSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return domain.LocationSample{}, fmt.Errorf("no fix")
	}
	return *f.current, nil
}

func (f *fakeLocation) SetCurrent(sample domain.LocationSample) {
	f.mu.Lock()
	f.current = &sample
	f.mu.Unlock()
}

func (f *fakeLocation) StartRegionMonitoring(_ context.Context, task string, regions []domain.Region) error {
	if f.regionErr != nil {
		f.record("start_region_failed")
		return f.regionErr
	}
	f.record(fmt.Sprintf("start_region:%s:%.0f", task, regions[0].RadiusM))
	return nil
}

func (f *fakeLocation) StopRegionMonitoring(context.Context, string) error {
	f.record("stop_region")
	return nil
}

func (f *fakeLocation) StartLocationUpdates(_ context.Context, _ string, options domain.UpdateOptions) error {
	f.mu.Lock()
	f.lastOptions = options
	f.mu.Unlock()
	f.record("start_updates:" + string(options.Accuracy))
	return nil
}

func (f *fakeLocation) StopLocationUpdates(context.Context, string) error {
	f.record("stop_updates")
	return nil
}

type fakeTasks struct {
	mu       sync.Mutex
	handlers map[string]trackingout.TaskHandler
}

func (f *fakeTasks) Register(name string, handler trackingout.TaskHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[string]trackingout.TaskHandler{}
	}
	f.handlers[name] = handler
	return nil
}

func (f *fakeTasks) Unregister(name string) {
	f.mu.Lock()
	delete(f.handlers, name)
	f.mu.Unlock()
}

func (f *fakeTasks) Registered(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[name]
	return ok
}

func (f *fakeTasks) Dispatch(ctx context.Context, name string, data domain.TaskData) error {
	f.mu.Lock()
	handler, ok := f.handlers[name]
	f.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	return handler(ctx, data)
}

type fakeDispatcher struct {
	mu             sync.Mutex
	presenceStarts int
	presenceStops  int
	updates        int
	statuses       int
	arrived        []trackingout.ArrivedAlert
	cleared        []string
}

func (f *fakeDispatcher) StartPresence(context.Context, trackingout.Presence) error {
	f.mu.Lock()
	f.presenceStarts++
	f.mu.Unlock()
	return nil
}

func (f *fakeDispatcher) UpdatePresence(context.Context, trackingout.Presence) error {
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
	return nil
}

func (f *fakeDispatcher) StopPresence(context.Context) error {
	f.mu.Lock()
	f.presenceStops++
	f.mu.Unlock()
	return nil
}

func (f *fakeDispatcher) SendArrived(_ context.Context, alert trackingout.ArrivedAlert) error {
	f.mu.Lock()
	f.arrived = append(f.arrived, alert)
	f.mu.Unlock()
	return nil
}

func (f *fakeDispatcher) SendTrackingStatus(context.Context, trackingout.TrackingStatus) error {
	f.mu.Lock()
	f.statuses++
	f.mu.Unlock()
	return nil
}

func (f *fakeDispatcher) ClearCategory(_ context.Context, category string) error {
	f.mu.Lock()
	f.cleared = append(f.cleared, category)
	f.mu.Unlock()
	return nil
}

func (f *fakeDispatcher) snapshot() fakeDispatcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeDispatcher{
		presenceStarts: f.presenceStarts,
		presenceStops:  f.presenceStops,
		updates:        f.updates,
		statuses:       f.statuses,
		arrived:        append([]trackingout.ArrivedAlert(nil), f.arrived...),
		cleared:        append([]string(nil), f.cleared...),
	}
}

type fakePlayer struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (f *fakePlayer) Start(context.Context, domain.AlertType, string) error {
	f.starts.Add(1)
	// Widen the window between latch and teardown.
	time.Sleep(time.Millisecond)
	return nil
}

func (f *fakePlayer) Stop(context.Context) error {
	f.stops.Add(1)
	return nil
}

type fakeApp struct {
	foreground bool
	mu         sync.Mutex
	navigated  []string
}

func (f *fakeApp) IsForeground(context.Context) bool { return f.foreground }

func (f *fakeApp) NavigateToArrival(_ context.Context, alarmID string) error {
	f.mu.Lock()
	f.navigated = append(f.navigated, alarmID)
	f.mu.Unlock()
	return nil
}

type fakeAlarms struct {
	mu     sync.Mutex
	alarms map[string]domain.Alarm
}

func newFakeAlarms(alarms ...domain.Alarm) *fakeAlarms {
	f := &fakeAlarms{alarms: map[string]domain.Alarm{}}
	for _, alarm := range alarms {
		f.alarms[alarm.ID] = alarm
	}
	return f
}

func (f *fakeAlarms) Save(_ context.Context, alarm domain.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if alarm.Active {
		for id, other := range f.alarms {
			other.Active = false
			f.alarms[id] = other
		}
	}
	f.alarms[alarm.ID] = alarm
	return nil
}

func (f *fakeAlarms) Get(_ context.Context, id string) (domain.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarm, ok := f.alarms[id]
	if !ok {
		return domain.Alarm{}, apperrors.ErrNotFound
	}
	return alarm, nil
}

func (f *fakeAlarms) Active(context.Context) (domain.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, alarm := range f.alarms {
		if alarm.Active {
			return alarm, nil
		}
	}
	return domain.Alarm{}, apperrors.ErrNotFound
}

func (f *fakeAlarms) List(context.Context, int) ([]domain.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Alarm, 0, len(f.alarms))
	for _, alarm := range f.alarms {
		out = append(out, alarm)
	}
	return out, nil
}

func (f *fakeAlarms) Dismiss(_ context.Context, id string) error {
	return f.update(id, func(a *domain.Alarm) { a.Dismissed = true; a.Active = false })
}

func (f *fakeAlarms) Deactivate(_ context.Context, id string) error {
	return f.update(id, func(a *domain.Alarm) { a.Active = false })
}

func (f *fakeAlarms) update(id string, fn func(*domain.Alarm)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarm, ok := f.alarms[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	fn(&alarm)
	f.alarms[id] = alarm
	return nil
}

type fakeCheckpoints struct {
	mu        sync.Mutex
	attempts  int
	resets    int
	finalized []string
	recovered *checkpointdto.CheckpointOutput
	// due makes every attempt a write.
	due       bool
	snapshots int
	written   []checkpointdto.CheckpointInput
}

func (f *fakeCheckpoints) MaybeCheckpoint(snapshot func() (checkpointdto.CheckpointInput, bool)) bool {
	f.mu.Lock()
	f.attempts++
	due := f.due
	f.mu.Unlock()
	if !due {
		return false
	}
	input, ok := snapshot()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	if ok {
		f.written = append(f.written, input)
	}
	return ok
}

func (f *fakeCheckpoints) setDue(due bool) {
	f.mu.Lock()
	f.due = due
	f.mu.Unlock()
}

func (f *fakeCheckpoints) Written() (int, []checkpointdto.CheckpointInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots, append([]checkpointdto.CheckpointInput(nil), f.written...)
}

func (f *fakeCheckpoints) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeCheckpoints) Finalize(alarmID string) {
	f.mu.Lock()
	f.finalized = append(f.finalized, alarmID)
	f.mu.Unlock()
}

func (f *fakeCheckpoints) Recover(_ context.Context, alarmID string) (checkpointdto.CheckpointOutput, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recovered == nil || f.recovered.AlarmID != alarmID {
		return checkpointdto.CheckpointOutput{}, false
	}
	return *f.recovered, true
}

func (f *fakeCheckpoints) Get(context.Context, string) (checkpointdto.CheckpointOutput, error) {
	return checkpointdto.CheckpointOutput{}, apperrors.ErrNotFound
}

func (f *fakeCheckpoints) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type fakeTelemetry struct {
	mu      sync.Mutex
	session string
	seq     int
	events  []string
}

func (f *fakeTelemetry) StartSession() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.session = fmt.Sprintf("t%d", f.seq)
	return f.session
}

func (f *fakeTelemetry) EndSession() {
	f.mu.Lock()
	f.session = ""
	f.mu.Unlock()
}

func (f *fakeTelemetry) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeTelemetry) LogEvent(eventType string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == "" {
		return
	}
	f.events = append(f.events, eventType)
}

func (f *fakeTelemetry) Tail(context.Context, string, int) ([]telemetrydto.EventOutput, error) {
	return nil, nil
}

func (f *fakeTelemetry) Count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, event := range f.events {
		if event == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	orch        *service.Orchestrator
	clock       *clock.Manual
	location    *fakeLocation
	tasks       *fakeTasks
	dispatcher  *fakeDispatcher
	player      *fakePlayer
	app         *fakeApp
	alarms      *fakeAlarms
	checkpoints *fakeCheckpoints
	telemetry   *fakeTelemetry

	mu     sync.Mutex
	events []domain.Event
}

var testAlarm = domain.Alarm{
	ID:        "alarm-1",
	Title:     "Office",
	Target:    target,
	RadiusM:   200,
	SoundKey:  "chime",
	AlertType: domain.AlertSoundAndVibration,
	Source:    domain.AlarmSourceManual,
	Active:    true,
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:       clock.NewManual(time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)),
		location:    newFakeLocation(),
		tasks:       &fakeTasks{},
		dispatcher:  &fakeDispatcher{},
		player:      &fakePlayer{},
		app:         &fakeApp{},
		alarms:      newFakeAlarms(testAlarm),
		checkpoints: &fakeCheckpoints{},
		telemetry:   &fakeTelemetry{},
	}
	orch, err := service.NewOrchestrator(service.NewState(), service.Deps{
		Clock:       h.clock,
		Calculator:  domain.NewCalculator(domain.DefaultThresholds()),
		Settings:    service.DefaultSettings(),
		Location:    h.location,
		Tasks:       h.tasks,
		Dispatcher:  h.dispatcher,
		Player:      h.player,
		AppState:    h.app,
		Alarms:      h.alarms,
		Checkpoints: h.checkpoints,
		Telemetry:   h.telemetry,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	h.orch = orch
	orch.Subscribe(func(event domain.Event) {
		h.mu.Lock()
		h.events = append(h.events, event)
		h.mu.Unlock()
	})
	return h
}

func (h *harness) start(t *testing.T, distanceM float64) {
	t.Helper()
	err := h.orch.StartTracking(context.Background(), service.StartRequest{
		AlarmID:          testAlarm.ID,
		Title:            testAlarm.Title,
		Target:           testAlarm.Target,
		RadiusM:          testAlarm.RadiusM,
		InitialDistanceM: &distanceM,
	})
	if err != nil {
		t.Fatalf("start tracking: %v", err)
	}
}

func (h *harness) tick(distanceM, speedKmh float64, after time.Duration) {
	at := h.clock.Advance(after)
	h.orch.HandleLocations(context.Background(), []domain.LocationSample{sampleAt(distanceM, speedKmh, at)})
}

func (h *harness) kinds() []domain.EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.EventKind, 0, len(h.events))
	for _, event := range h.events {
		out = append(out, event.Kind)
	}
	return out
}

func (h *harness) count(kind domain.EventKind) int {
	n := 0
	for _, k := range h.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}
