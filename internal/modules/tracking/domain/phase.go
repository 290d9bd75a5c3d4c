package domain

import (
	"fmt"
	"math"
	"time"

	"arrivalwatch/internal/platform/config"
)

type Phase string

const (
	PhaseIdle            Phase = "IDLE"
	PhaseGeofencing      Phase = "GEOFENCING"
	PhaseAdaptivePolling Phase = "ADAPTIVE_POLLING"
	PhaseActiveTracking  Phase = "ACTIVE_TRACKING"
)

func (p Phase) Validate() error {
	switch p {
	case PhaseIdle, PhaseGeofencing, PhaseAdaptivePolling, PhaseActiveTracking:
		return nil
	default:
		return fmt.Errorf("unsupported phase %q", string(p))
	}
}

// Thresholds configure the phase calculator. Each exit buffer must be
// strictly greater than the entry distance of its band.
type Thresholds struct {
	MinSpeedKmh           float64
	HighSpeedKmh          float64
	HighSpeedFactor       float64
	MinCooldown           time.Duration
	MaxCooldown           time.Duration
	MaxCooldownLongRange  time.Duration
	LongRangeDistanceM    float64
	ActiveEntryDistanceM  float64
	ActiveExitDistanceM   float64
	ActiveETAMinutes      float64
	GeofenceRadiusM       float64
	GeofenceExitDistanceM float64
}

// DefaultThresholds are the phase thresholds of config.DefaultTuning.
func DefaultThresholds() Thresholds {
	return ThresholdsFrom(config.DefaultTuning().Phase)
}

func ThresholdsFrom(p config.PhaseTuning) Thresholds {
	return Thresholds{
		MinSpeedKmh:           p.MinSpeedKmh,
		HighSpeedKmh:          p.HighSpeedKmh,
		HighSpeedFactor:       p.HighSpeedFactor,
		MinCooldown:           p.MinCooldown,
		MaxCooldown:           p.MaxCooldown,
		MaxCooldownLongRange:  p.MaxCooldownLongRange,
		LongRangeDistanceM:    p.LongRangeDistanceM,
		ActiveEntryDistanceM:  p.ActiveEntryDistanceM,
		ActiveExitDistanceM:   p.ActiveExitDistanceM,
		ActiveETAMinutes:      p.ActiveETAMinutes,
		GeofenceRadiusM:       p.GeofenceRadiusM,
		GeofenceExitDistanceM: p.GeofenceExitDistanceM,
	}
}

func (t Thresholds) Validate() error {
	if t.MinSpeedKmh <= 0 {
		return fmt.Errorf("min speed must be positive")
	}
	if t.MinCooldown <= 0 || t.MaxCooldown < t.MinCooldown || t.MaxCooldownLongRange < t.MaxCooldown {
		return fmt.Errorf("cooldown bounds must satisfy 0 < min <= max <= long range max")
	}
	if t.ActiveExitDistanceM <= t.ActiveEntryDistanceM {
		return fmt.Errorf("active exit buffer must exceed active entry distance")
	}
	if t.GeofenceExitDistanceM <= t.GeofenceRadiusM {
		return fmt.Errorf("geofence exit buffer must exceed geofence radius")
	}
	return nil
}

// Calculator decides cooldowns and phases. It holds no state.
type Calculator struct {
	Thresholds Thresholds
}

func NewCalculator(t Thresholds) Calculator {
	return Calculator{Thresholds: t}
}

func (c Calculator) effectiveSpeedKmh(speedKmh float64) float64 {
	if math.IsNaN(speedKmh) || speedKmh < c.Thresholds.MinSpeedKmh {
		return c.Thresholds.MinSpeedKmh
	}
	return speedKmh
}

func (c Calculator) etaSeconds(distanceM, speedKmh float64) float64 {
	if math.IsNaN(distanceM) || distanceM < 0 {
		distanceM = 0
	}
	return distanceM / (c.effectiveSpeedKmh(speedKmh) / 3.6)
}

// ComputeCooldown returns how long adaptive polling waits between fully
// processed samples. The result is never below MinCooldown.
func (c Calculator) ComputeCooldown(distanceM, speedKmh float64) time.Duration {
	t := c.Thresholds
	speed := c.effectiveSpeedKmh(speedKmh)
	ms := c.etaSeconds(distanceM, speed) / 2 * 1000
	if speed > t.HighSpeedKmh {
		ms *= t.HighSpeedFactor
	}
	ceiling := t.MaxCooldown
	if distanceM > t.LongRangeDistanceM {
		ceiling = t.MaxCooldownLongRange
	}
	floorMS := float64(t.MinCooldown / time.Millisecond)
	ceilMS := float64(ceiling / time.Millisecond)
	if ms > ceilMS {
		ms = ceilMS
	}
	if ms < floorMS || math.IsNaN(ms) {
		ms = floorMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Calculator) ShouldEnterActiveTracking(distanceM, speedKmh float64) bool {
	if distanceM < c.Thresholds.ActiveEntryDistanceM {
		return true
	}
	return c.etaSeconds(distanceM, speedKmh)/60 < c.Thresholds.ActiveETAMinutes
}

// DeterminePhase applies two hysteresis bands: ACTIVE<->ADAPTIVE and
// ADAPTIVE<->GEOFENCING. Leaving the nearer phase requires crossing the exit
// buffer, not just the entry threshold.
func (c Calculator) DeterminePhase(distanceM, speedKmh float64, from Phase, geofenceSetupFailed bool) Phase {
	t := c.Thresholds
	if c.ShouldEnterActiveTracking(distanceM, speedKmh) {
		return PhaseActiveTracking
	}
	if from == PhaseActiveTracking {
		if distanceM <= t.ActiveExitDistanceM {
			return PhaseActiveTracking
		}
		return PhaseAdaptivePolling
	}
	if distanceM <= t.GeofenceRadiusM {
		return PhaseAdaptivePolling
	}
	if from == PhaseAdaptivePolling {
		if geofenceSetupFailed {
			return PhaseAdaptivePolling
		}
		if distanceM <= t.GeofenceExitDistanceM {
			return PhaseAdaptivePolling
		}
	}
	return PhaseGeofencing
}
