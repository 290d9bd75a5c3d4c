package out

import (
	"context"
	"time"

	"arrivalwatch/internal/modules/tracking/domain"
)

type Presence struct {
	Title    string
	Subtitle string
	Progress float64
}

type ArrivedAlert struct {
	Title    string
	AlarmID  string
	SoundKey string
}

type TrackingStatus struct {
	Title     string
	DistanceM float64
	Elapsed   time.Duration
}

const (
	CategoryArrival  = "arrival"
	CategoryTracking = "tracking"
)

// Dispatcher shows presence indicators and alerts on the host.
type Dispatcher interface {
	StartPresence(ctx context.Context, presence Presence) error
	UpdatePresence(ctx context.Context, presence Presence) error
	StopPresence(ctx context.Context) error
	SendArrived(ctx context.Context, alert ArrivedAlert) error
	SendTrackingStatus(ctx context.Context, status TrackingStatus) error
	ClearCategory(ctx context.Context, category string) error
}

type Player interface {
	Start(ctx context.Context, alertType domain.AlertType, soundKey string) error
	Stop(ctx context.Context) error
}

type AppState interface {
	IsForeground(ctx context.Context) bool
	NavigateToArrival(ctx context.Context, alarmID string) error
}

// AlarmStore persists alarms. At most one alarm is active at a time.
type AlarmStore interface {
	// Save stores alarm and, when it is active, deactivates every other alarm.
	Save(ctx context.Context, alarm domain.Alarm) error
	Get(ctx context.Context, id string) (domain.Alarm, error)
	// Active returns apperrors.ErrNotFound when no alarm is active.
	Active(ctx context.Context) (domain.Alarm, error)
	List(ctx context.Context, limit int) ([]domain.Alarm, error)
	Dismiss(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}
