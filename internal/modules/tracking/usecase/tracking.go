package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	trackingdomain "arrivalwatch/internal/modules/tracking/domain"
	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	trackingin "arrivalwatch/internal/modules/tracking/port/in"
	trackingout "arrivalwatch/internal/modules/tracking/port/out"
	"arrivalwatch/internal/modules/tracking/service"
	"arrivalwatch/internal/platform/clock"
	"arrivalwatch/internal/platform/config"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/platform/id"
)

const defaultTitle = "Destination"

type Defaults struct {
	RadiusM  float64
	SoundKey string
}

type Interactor struct {
	orch     *service.Orchestrator
	calc     trackingdomain.Calculator
	alarms   trackingout.AlarmStore
	player   trackingout.Player
	location trackingout.LocationProvider
	clock    clock.Clock
	ids      id.Generator
	defaults Defaults
}

func NewInteractor(
	orch *service.Orchestrator,
	calc trackingdomain.Calculator,
	alarms trackingout.AlarmStore,
	player trackingout.Player,
	location trackingout.LocationProvider,
	clk clock.Clock,
	ids id.Generator,
	defaults Defaults,
) trackingin.Usecase {
	fallback := config.DefaultTuning().Tracking
	if defaults.RadiusM <= 0 {
		defaults.RadiusM = fallback.DefaultRadiusM
	}
	if defaults.SoundKey == "" {
		defaults.SoundKey = fallback.DefaultSoundKey
	}
	return &Interactor{
		orch:     orch,
		calc:     calc,
		alarms:   alarms,
		player:   player,
		location: location,
		clock:    clk,
		ids:      ids,
		defaults: defaults,
	}
}

func (i *Interactor) CreateAlarm(ctx context.Context, input trackingdto.CreateAlarmInput) (trackingdto.AlarmOutput, error) {
	alarm := trackingdomain.Alarm{
		ID:        i.ids.New(),
		Title:     strings.TrimSpace(input.Title),
		Target:    trackingdomain.Coordinate{Latitude: input.Latitude, Longitude: input.Longitude},
		RadiusM:   input.RadiusM,
		SoundKey:  input.SoundKey,
		AlertType: trackingdomain.AlertType(input.AlertType),
		Source:    trackingdomain.AlarmSource(input.Source),
		RoutineID: input.RoutineID,
		Active:    true,
		CreatedAt: i.clock.Now(),
	}
	if alarm.Title == "" {
		alarm.Title = defaultTitle
	}
	if alarm.RadiusM == 0 {
		alarm.RadiusM = i.defaults.RadiusM
	}
	if alarm.SoundKey == "" {
		alarm.SoundKey = i.defaults.SoundKey
	}
	if alarm.AlertType == "" {
		alarm.AlertType = trackingdomain.AlertSoundAndVibration
	}
	if alarm.Source == "" {
		alarm.Source = trackingdomain.AlarmSourceManual
	}
	if err := alarm.Validate(); err != nil {
		return trackingdto.AlarmOutput{}, fmt.Errorf("create alarm: %w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := i.alarms.Save(ctx, alarm); err != nil {
		return trackingdto.AlarmOutput{}, err
	}
	if err := i.start(ctx, alarm, input.InitialDistanceM); err != nil {
		if deactivateErr := i.alarms.Deactivate(ctx, alarm.ID); deactivateErr != nil {
			return trackingdto.AlarmOutput{}, errors.Join(err, deactivateErr)
		}
		return trackingdto.AlarmOutput{}, err
	}
	return toAlarmOutput(alarm), nil
}

func (i *Interactor) start(ctx context.Context, alarm trackingdomain.Alarm, initialDistanceM *float64) error {
	return i.orch.StartTracking(ctx, service.StartRequest{
		AlarmID:          alarm.ID,
		Title:            alarm.Title,
		Target:           alarm.Target,
		RadiusM:          alarm.RadiusM,
		InitialDistanceM: initialDistanceM,
	})
}

func (i *Interactor) Resume(ctx context.Context) (trackingdto.AlarmOutput, bool, error) {
	alarm, err := i.alarms.Active(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		return trackingdto.AlarmOutput{}, false, nil
	}
	if err != nil {
		return trackingdto.AlarmOutput{}, false, err
	}
	if alarm.Dismissed {
		return trackingdto.AlarmOutput{}, false, nil
	}
	if status := i.orch.Status(); status.Active && status.AlarmID == alarm.ID {
		return toAlarmOutput(alarm), true, nil
	}
	if err := i.start(ctx, alarm, nil); err != nil {
		return trackingdto.AlarmOutput{}, false, err
	}
	return toAlarmOutput(alarm), true, nil
}

func (i *Interactor) Dismiss(ctx context.Context, alarmID string) error {
	alarmID, err := i.resolve(ctx, alarmID)
	if err != nil {
		return err
	}
	if err := i.player.Stop(ctx); err != nil {
		return fmt.Errorf("stop alarm sound: %w", err)
	}
	if err := i.alarms.Dismiss(ctx, alarmID); err != nil {
		return err
	}
	i.stopIfCurrent(ctx, alarmID)
	return nil
}

func (i *Interactor) Cancel(ctx context.Context, alarmID string) error {
	alarmID, err := i.resolve(ctx, alarmID)
	if err != nil {
		return err
	}
	if err := i.alarms.Deactivate(ctx, alarmID); err != nil {
		return err
	}
	i.stopIfCurrent(ctx, alarmID)
	return nil
}

func (i *Interactor) Stop(ctx context.Context) error {
	status := i.orch.Status()
	if err := i.player.Stop(ctx); err != nil {
		return fmt.Errorf("stop alarm sound: %w", err)
	}
	i.orch.StopAllTracking(ctx)
	if status.AlarmID == "" {
		return nil
	}
	if err := i.alarms.Deactivate(ctx, status.AlarmID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

func (i *Interactor) stopIfCurrent(ctx context.Context, alarmID string) {
	if i.orch.Status().AlarmID == alarmID {
		i.orch.StopAllTracking(ctx)
	}
}

// resolve defaults an empty id to the active alarm.
func (i *Interactor) resolve(ctx context.Context, alarmID string) (string, error) {
	if strings.TrimSpace(alarmID) != "" {
		return alarmID, nil
	}
	alarm, err := i.alarms.Active(ctx)
	if err != nil {
		return "", err
	}
	return alarm.ID, nil
}

func (i *Interactor) Status(_ context.Context) trackingdto.StatusOutput {
	return toStatusOutput(i.orch.Status())
}

func (i *Interactor) Refresh(ctx context.Context) (trackingdto.StatusOutput, error) {
	snap, err := i.orch.Refresh(ctx)
	if err != nil {
		return trackingdto.StatusOutput{}, err
	}
	return toStatusOutput(snap), nil
}

func (i *Interactor) ActiveAlarm(ctx context.Context) (trackingdto.AlarmOutput, error) {
	alarm, err := i.alarms.Active(ctx)
	if err != nil {
		return trackingdto.AlarmOutput{}, err
	}
	return toAlarmOutput(alarm), nil
}

func (i *Interactor) ListAlarms(ctx context.Context, limit int) ([]trackingdto.AlarmOutput, error) {
	alarms, err := i.alarms.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]trackingdto.AlarmOutput, 0, len(alarms))
	for _, alarm := range alarms {
		out = append(out, toAlarmOutput(alarm))
	}
	return out, nil
}

func (i *Interactor) CurrentFix(ctx context.Context) (trackingdto.FixOutput, error) {
	sample, err := i.location.CurrentLocation(ctx)
	if err != nil {
		return trackingdto.FixOutput{}, fmt.Errorf("current location: %w", err)
	}
	return trackingdto.FixOutput{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		SpeedMPS:  sample.SpeedMPS,
		AccuracyM: sample.AccuracyM,
		Timestamp: sample.Timestamp,
	}, nil
}

func (i *Interactor) DecidePhase(input trackingdto.PhaseDecisionInput) (trackingdto.PhaseDecisionOutput, error) {
	from := trackingdomain.Phase(strings.ToUpper(input.From))
	if from == "" {
		from = trackingdomain.PhaseIdle
	}
	if err := from.Validate(); err != nil {
		return trackingdto.PhaseDecisionOutput{}, fmt.Errorf("decide phase: %w: %v", apperrors.ErrInvalidInput, err)
	}
	if input.DistanceM < 0 || input.SpeedKmh < 0 {
		return trackingdto.PhaseDecisionOutput{}, fmt.Errorf("decide phase: %w: distance and speed must be non-negative", apperrors.ErrInvalidInput)
	}
	return trackingdto.PhaseDecisionOutput{
		Phase:       string(i.calc.DeterminePhase(input.DistanceM, input.SpeedKmh, from, input.GeofenceSetupFailed)),
		Cooldown:    i.calc.ComputeCooldown(input.DistanceM, input.SpeedKmh),
		EnterActive: i.calc.ShouldEnterActiveTracking(input.DistanceM, input.SpeedKmh),
	}, nil
}

func (i *Interactor) Subscribe(listener func(trackingdto.EventOutput)) func() {
	return i.orch.Subscribe(func(event trackingdomain.Event) {
		listener(trackingdto.EventOutput{
			Kind:   string(event.Kind),
			From:   string(event.From),
			To:     string(event.To),
			Status: toStatusOutput(event.Snapshot),
		})
	})
}

func toAlarmOutput(alarm trackingdomain.Alarm) trackingdto.AlarmOutput {
	return trackingdto.AlarmOutput{
		ID:        alarm.ID,
		Title:     alarm.Title,
		Latitude:  alarm.Target.Latitude,
		Longitude: alarm.Target.Longitude,
		RadiusM:   alarm.RadiusM,
		SoundKey:  alarm.SoundKey,
		AlertType: string(alarm.AlertType),
		Source:    string(alarm.Source),
		RoutineID: alarm.RoutineID,
		Active:    alarm.Active,
		Dismissed: alarm.Dismissed,
		CreatedAt: alarm.CreatedAt,
	}
}

func toStatusOutput(snap trackingdomain.Snapshot) trackingdto.StatusOutput {
	return trackingdto.StatusOutput{
		Active:              snap.Active,
		Phase:               string(snap.Phase),
		AlarmID:             snap.AlarmID,
		Title:               snap.Title,
		Latitude:            snap.Target.Latitude,
		Longitude:           snap.Target.Longitude,
		RadiusM:             snap.RadiusM,
		DistanceM:           snap.DistanceM,
		SpeedKmh:            snap.SpeedKmh,
		RoutePoints:         snap.RoutePoints,
		TraveledDistanceM:   snap.TraveledDistanceM,
		Progress:            snap.Progress,
		ArrivalTriggered:    snap.ArrivalTriggered,
		GeofenceSetupFailed: snap.GeofenceSetupFailed,
		StartedAt:           snap.StartedAt,
		LastProcessedAt:     snap.LastProcessedAt,
	}
}
