package domain

import "time"

type EventKind string

const (
	EventStarted      EventKind = "started"
	EventTick         EventKind = "tick"
	EventPhaseChanged EventKind = "phase_changed"
	EventArrival      EventKind = "arrival"
	EventStopped      EventKind = "stopped"
)

// Snapshot is a copy of the orchestrator state safe to hand to listeners.
type Snapshot struct {
	Active              bool
	Phase               Phase
	AlarmID             string
	Title               string
	Target              Coordinate
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

type Event struct {
	Kind     EventKind
	From     Phase
	To       Phase
	Snapshot Snapshot
}

type Listener func(Event)
