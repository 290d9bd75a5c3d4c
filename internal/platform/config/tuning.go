package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Tuning holds every knob of the tracking core. Zero values are never used
// directly: LoadTuning overlays the YAML file on top of DefaultTuning.
type Tuning struct {
	LogLevel   string           `yaml:"log_level" validate:"oneof=trace debug info warn error off"`
	Phase      PhaseTuning      `yaml:"phase"`
	Tracking   TrackingTuning   `yaml:"tracking"`
	Checkpoint CheckpointTuning `yaml:"checkpoint"`
	Routines   RoutineTuning    `yaml:"routines"`
	Bridge     BridgeTuning     `yaml:"bridge"`
}

type PhaseTuning struct {
	MinSpeedKmh           float64       `yaml:"min_speed_kmh" validate:"gt=0"`
	HighSpeedKmh          float64       `yaml:"high_speed_kmh" validate:"gtfield=MinSpeedKmh"`
	HighSpeedFactor       float64       `yaml:"high_speed_factor" validate:"gt=0,lte=1"`
	MinCooldown           time.Duration `yaml:"min_cooldown" validate:"gt=0"`
	MaxCooldown           time.Duration `yaml:"max_cooldown" validate:"gtfield=MinCooldown"`
	MaxCooldownLongRange  time.Duration `yaml:"max_cooldown_long_range" validate:"gtefield=MaxCooldown"`
	LongRangeDistanceM    float64       `yaml:"long_range_distance_m" validate:"gt=0"`
	ActiveEntryDistanceM  float64       `yaml:"active_entry_distance_m" validate:"gt=0"`
	ActiveExitDistanceM   float64       `yaml:"active_exit_distance_m" validate:"gtfield=ActiveEntryDistanceM"`
	ActiveETAMinutes      float64       `yaml:"active_eta_minutes" validate:"gte=0"`
	GeofenceRadiusM       float64       `yaml:"geofence_radius_m" validate:"gtfield=ActiveExitDistanceM"`
	GeofenceExitDistanceM float64       `yaml:"geofence_exit_distance_m" validate:"gtfield=GeofenceRadiusM"`
}

type UpdateTuning struct {
	Accuracy          string        `yaml:"accuracy" validate:"oneof=lowest low balanced high highest navigation"`
	TimeInterval      time.Duration `yaml:"time_interval" validate:"gt=0"`
	DistanceIntervalM float64       `yaml:"distance_interval_m" validate:"gte=0"`
}

type TrackingTuning struct {
	MilestoneEvery   int           `yaml:"milestone_every" validate:"gt=0"`
	PresenceInterval time.Duration `yaml:"presence_interval" validate:"gt=0"`
	Polling          UpdateTuning  `yaml:"polling"`
	Active           UpdateTuning  `yaml:"active"`
	DefaultRadiusM   float64       `yaml:"default_radius_m" validate:"gt=0"`
	DefaultSoundKey  string        `yaml:"default_sound_key" validate:"required"`
}

type CheckpointTuning struct {
	PointThreshold int           `yaml:"point_threshold" validate:"gt=0"`
	Interval       time.Duration `yaml:"interval" validate:"gt=0"`
	ResumeMaxAge   time.Duration `yaml:"resume_max_age" validate:"gte=0"`
}

type RoutineTuning struct {
	Debounce         time.Duration `yaml:"debounce" validate:"gte=0"`
	EvaluateInterval time.Duration `yaml:"evaluate_interval" validate:"gt=0"`
	// Timezone names the IANA zone routine windows are read in. Empty means local time.
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone.
func (r RoutineTuning) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("routine timezone: %w", err)
	}
	return loc, nil
}

type BridgeTuning struct {
	Binary       string        `yaml:"binary"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

func DefaultTuning() Tuning {
	return Tuning{
		LogLevel: "info",
		Phase: PhaseTuning{
			MinSpeedKmh:           5,
			HighSpeedKmh:          60,
			HighSpeedFactor:       0.5,
			MinCooldown:           10 * time.Second,
			MaxCooldown:           2 * time.Minute,
			MaxCooldownLongRange:  5 * time.Minute,
			LongRangeDistanceM:    20000,
			ActiveEntryDistanceM:  1500,
			ActiveExitDistanceM:   2000,
			ActiveETAMinutes:      3,
			GeofenceRadiusM:       5000,
			GeofenceExitDistanceM: 6000,
		},
		Tracking: TrackingTuning{
			MilestoneEvery:   25,
			PresenceInterval: 30 * time.Second,
			Polling:          UpdateTuning{Accuracy: "balanced", TimeInterval: 30 * time.Second, DistanceIntervalM: 50},
			Active:           UpdateTuning{Accuracy: "highest", TimeInterval: 5 * time.Second, DistanceIntervalM: 10},
			DefaultRadiusM:   300,
			DefaultSoundKey:  "default",
		},
		Checkpoint: CheckpointTuning{
			PointThreshold: 50,
			Interval:       5 * time.Minute,
			ResumeMaxAge:   6 * time.Hour,
		},
		Routines: RoutineTuning{
			Debounce:         5 * time.Second,
			EvaluateInterval: 30 * time.Second,
		},
		Bridge: BridgeTuning{
			PollInterval: 2 * time.Second,
		},
	}
}

// LoadTuning reads path on top of the defaults. A missing file is not an error.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tuning, nil
		}
		return Tuning{}, fmt.Errorf("read tuning: %w", err)
	}
	if err := yaml.Unmarshal(raw, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("decode tuning: %w", err)
	}
	if err := tuning.Validate(); err != nil {
		return Tuning{}, err
	}
	return tuning, nil
}

func (t Tuning) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return fmt.Errorf("validate tuning: %w", err)
	}
	return nil
}
