package dto

import "time"

type CreateAlarmInput struct {
	Title     string
	Latitude  float64
	Longitude float64
	RadiusM   float64
	SoundKey  string
	AlertType string
	Source    string
	RoutineID string
	// InitialDistanceM skips the one-shot fix when set.
	InitialDistanceM *float64
}

type AlarmOutput struct {
	ID        string
	Title     string
	Latitude  float64
	Longitude float64
	RadiusM   float64
	SoundKey  string
	AlertType string
	Source    string
	RoutineID string
	Active    bool
	Dismissed bool
	CreatedAt time.Time
}

type StatusOutput struct {
	Active              bool
	Phase               string
	AlarmID             string
	Title               string
	Latitude            float64
	Longitude           float64
	RadiusM             float64
	DistanceM           float64
	SpeedKmh            float64
	RoutePoints         int
	TraveledDistanceM   float64
	Progress            float64
	ArrivalTriggered    bool
	GeofenceSetupFailed bool
	StartedAt           time.Time
	LastProcessedAt     time.Time
}

// Event kinds carried by EventOutput.Kind.
const (
	EventStarted      = "started"
	EventTick         = "tick"
	EventPhaseChanged = "phase_changed"
	EventArrival      = "arrival"
	EventStopped      = "stopped"
)

// Alarm sources.
const (
	SourceManual  = "manual"
	SourceRoutine = "routine"
)

type EventOutput struct {
	Kind   string
	From   string
	To     string
	Status StatusOutput
}

type FixOutput struct {
	Latitude  float64
	Longitude float64
	SpeedMPS  float64
	AccuracyM float64
	Timestamp time.Time
}

type PhaseDecisionInput struct {
	DistanceM           float64
	SpeedKmh            float64
	From                string
	GeofenceSetupFailed bool
}

type PhaseDecisionOutput struct {
	Phase       string
	Cooldown    time.Duration
	EnterActive bool
}
