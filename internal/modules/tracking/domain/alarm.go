package domain

import (
	"fmt"
	"strings"
	"time"
)

type AlertType string

const (
	AlertSoundAndVibration AlertType = "sound_and_vibration"
	AlertSound             AlertType = "sound"
	AlertVibration         AlertType = "vibration"
)

func (a AlertType) Validate() error {
	switch a {
	case AlertSoundAndVibration, AlertSound, AlertVibration:
		return nil
	default:
		return fmt.Errorf("unsupported alert type %q", string(a))
	}
}

type AlarmSource string

const (
	AlarmSourceManual  AlarmSource = "manual"
	AlarmSourceRoutine AlarmSource = "routine"
)

// Alarm is the application-owned record the tracker reports arrival for.
type Alarm struct {
	ID        string
	Title     string
	Target    Coordinate
	RadiusM   float64
	SoundKey  string
	AlertType AlertType
	Source    AlarmSource
	RoutineID string
	Active    bool
	Dismissed bool
	CreatedAt time.Time
}

func (a Alarm) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("alarm id is required")
	}
	if err := a.Target.Validate(); err != nil {
		return err
	}
	if a.RadiusM <= 0 {
		return fmt.Errorf("alarm radius must be positive")
	}
	if err := a.AlertType.Validate(); err != nil {
		return err
	}
	switch a.Source {
	case AlarmSourceManual:
	case AlarmSourceRoutine:
		if a.RoutineID == "" {
			return fmt.Errorf("routine alarm needs a routine id")
		}
	default:
		return fmt.Errorf("unsupported alarm source %q", string(a.Source))
	}
	return nil
}
