package in

import (
	"context"

	"arrivalwatch/internal/modules/tracking/dto"
)

type Usecase interface {
	// CreateAlarm persists an alarm and starts tracking toward it.
	CreateAlarm(ctx context.Context, input dto.CreateAlarmInput) (dto.AlarmOutput, error)
	// Dismiss silences the alarm, marks it dismissed and stops its session.
	Dismiss(ctx context.Context, alarmID string) error
	// Cancel deactivates an alarm without dismissing it and stops its session.
	Cancel(ctx context.Context, alarmID string) error
	Stop(ctx context.Context) error
	// Resume restarts tracking toward the active alarm, if any, after a
	// process restart.
	Resume(ctx context.Context) (dto.AlarmOutput, bool, error)
	Status(ctx context.Context) dto.StatusOutput
	Refresh(ctx context.Context) (dto.StatusOutput, error)
	ActiveAlarm(ctx context.Context) (dto.AlarmOutput, error)
	ListAlarms(ctx context.Context, limit int) ([]dto.AlarmOutput, error)
	CurrentFix(ctx context.Context) (dto.FixOutput, error)
	DecidePhase(input dto.PhaseDecisionInput) (dto.PhaseDecisionOutput, error)
	Subscribe(listener func(dto.EventOutput)) func()
}
