package in

import (
	"context"

	trackingdto "arrivalwatch/internal/modules/tracking/dto"
	trackingin "arrivalwatch/internal/modules/tracking/port/in"
)

type CLIHandler struct {
	usecase trackingin.Usecase
}

func NewCLIHandler(usecase trackingin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Track(ctx context.Context, input trackingdto.CreateAlarmInput) (trackingdto.AlarmOutput, error) {
	if input.Source == "" {
		input.Source = trackingdto.SourceManual
	}
	return h.usecase.CreateAlarm(ctx, input)
}

func (h CLIHandler) Dismiss(ctx context.Context, alarmID string) error {
	return h.usecase.Dismiss(ctx, alarmID)
}

func (h CLIHandler) Cancel(ctx context.Context, alarmID string) error {
	return h.usecase.Cancel(ctx, alarmID)
}

func (h CLIHandler) Stop(ctx context.Context) error {
	return h.usecase.Stop(ctx)
}

func (h CLIHandler) Resume(ctx context.Context) (trackingdto.AlarmOutput, bool, error) {
	return h.usecase.Resume(ctx)
}

func (h CLIHandler) Status(ctx context.Context) trackingdto.StatusOutput {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) Refresh(ctx context.Context) (trackingdto.StatusOutput, error) {
	return h.usecase.Refresh(ctx)
}

func (h CLIHandler) ActiveAlarm(ctx context.Context) (trackingdto.AlarmOutput, error) {
	return h.usecase.ActiveAlarm(ctx)
}

func (h CLIHandler) ListAlarms(ctx context.Context, limit int) ([]trackingdto.AlarmOutput, error) {
	return h.usecase.ListAlarms(ctx, limit)
}

func (h CLIHandler) CurrentFix(ctx context.Context) (trackingdto.FixOutput, error) {
	return h.usecase.CurrentFix(ctx)
}

func (h CLIHandler) DecidePhase(distanceM, speedKmh float64, from string, geofenceSetupFailed bool) (trackingdto.PhaseDecisionOutput, error) {
	return h.usecase.DecidePhase(trackingdto.PhaseDecisionInput{
		DistanceM:           distanceM,
		SpeedKmh:            speedKmh,
		From:                from,
		GeofenceSetupFailed: geofenceSetupFailed,
	})
}

func (h CLIHandler) Subscribe(listener func(trackingdto.EventOutput)) func() {
	return h.usecase.Subscribe(listener)
}
