package domain

import (
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventPhaseTransition EventType = "phase_transition"
	EventMilestone       EventType = "milestone"
	EventArrival         EventType = "arrival"
	EventTrackingStopped EventType = "tracking_stopped"
	EventRoutineStarted  EventType = "routine_started"
	EventRoutineStopped  EventType = "routine_stopped"
)

type Event struct {
	ID        int64
	SessionID string
	Type      EventType
	Payload   map[string]any
	WrittenAt time.Time
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.SessionID) == "" {
		return fmt.Errorf("telemetry session id is required")
	}
	if strings.TrimSpace(string(e.Type)) == "" {
		return fmt.Errorf("telemetry event type is required")
	}
	return nil
}
