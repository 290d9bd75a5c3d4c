package domain_test

import (
	"math"
	"testing"
	"time"

	"arrivalwatch/internal/modules/tracking/domain"
	"arrivalwatch/internal/platform/config"
)

func calculator() domain.Calculator {
	return domain.NewCalculator(domain.DefaultThresholds())
}

func TestComputeCooldownNeverBelowMinimum(t *testing.T) {
	t.Parallel()
	calc := calculator()
	floor := calc.Thresholds.MinCooldown
	for _, distance := range []float64{0, 1, 50, 999, 5000, 19999, 20001, 1e6} {
		for _, speed := range []float64{0, 0.1, 4.9, 5, 30, 59.9, 60.1, 120, 300} {
			if got := calc.ComputeCooldown(distance, speed); got < floor {
				t.Fatalf("cooldown(%v, %v) = %v below %v", distance, speed, got, floor)
			}
		}
	}
	for _, weird := range []float64{math.NaN(), -10} {
		if got := calc.ComputeCooldown(weird, weird); got < floor {
			t.Fatalf("cooldown(%v) = %v below %v", weird, got, floor)
		}
	}
}

func TestComputeCooldownHighSpeedReduces(t *testing.T) {
	t.Parallel()
	calc := calculator()
	const eps = 0.5
	for _, distance := range []float64{1500, 2000, 3000} {
		for _, speed := range []float64{61, 80, 100} {
			fast := calc.ComputeCooldown(distance, speed)
			slower := calc.ComputeCooldown(distance, speed-eps)
			if !(fast < slower) {
				t.Fatalf("cooldown(%v, %v)=%v not below cooldown(%v, %v)=%v", distance, speed, fast, distance, speed-eps, slower)
			}
		}
	}
}

func TestComputeCooldownScenarios(t *testing.T) {
	t.Parallel()
	calc := calculator()
	tests := []struct {
		name     string
		distance float64
		speed    float64
		want     time.Duration
	}{
		{name: "highway near", distance: 2000, speed: 80, want: 22500 * time.Millisecond},
		{name: "long range ceiling", distance: 60000, speed: 30, want: 5 * time.Minute},
		{name: "near ceiling", distance: 15000, speed: 10, want: 2 * time.Minute},
		{name: "stationary at target", distance: 0, speed: 0, want: 10 * time.Second},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := calc.ComputeCooldown(tc.distance, tc.speed); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestShouldEnterActiveTracking(t *testing.T) {
	t.Parallel()
	calc := calculator()
	for d := 0.0; d < calc.Thresholds.ActiveEntryDistanceM; d += 37 {
		for _, speed := range []float64{0, 3, 50, 200} {
			if !calc.ShouldEnterActiveTracking(d, speed) {
				t.Fatalf("expected active tracking at %v m, %v km/h", d, speed)
			}
		}
	}
	if !calc.ShouldEnterActiveTracking(1499, 0) {
		t.Fatalf("expected 1499 m to enter active tracking")
	}
	if calc.ShouldEnterActiveTracking(1500, 0) {
		t.Fatalf("expected 1500 m at walking pace to stay out of active tracking")
	}
	if !calc.ShouldEnterActiveTracking(4000, 100) {
		t.Fatalf("expected ETA under 3 minutes to enter active tracking")
	}
}

func TestDeterminePhaseScenarios(t *testing.T) {
	t.Parallel()
	calc := calculator()
	tests := []struct {
		name     string
		distance float64
		speed    float64
		from     domain.Phase
		failed   bool
		want     domain.Phase
	}{
		{name: "far start geofences", distance: 6000, want: domain.PhaseGeofencing, from: domain.PhaseIdle},
		{name: "near start is active", distance: 1000, want: domain.PhaseActiveTracking, from: domain.PhaseIdle},
		{name: "inside region polls", distance: 4000, speed: 20, want: domain.PhaseAdaptivePolling, from: domain.PhaseIdle},
		{name: "active holds inside exit buffer", distance: 1800, speed: 30, from: domain.PhaseActiveTracking, want: domain.PhaseActiveTracking},
		{name: "active holds at exit buffer", distance: 2000, speed: 30, from: domain.PhaseActiveTracking, want: domain.PhaseActiveTracking},
		{name: "active leaves past exit buffer", distance: 2500, speed: 30, from: domain.PhaseActiveTracking, want: domain.PhaseAdaptivePolling},
		{name: "adaptive holds inside geofence exit", distance: 5800, speed: 30, from: domain.PhaseAdaptivePolling, want: domain.PhaseAdaptivePolling},
		{name: "adaptive promotes past geofence exit", distance: 7000, speed: 30, from: domain.PhaseAdaptivePolling, want: domain.PhaseGeofencing},
		{name: "degraded never geofences", distance: 7000, speed: 30, from: domain.PhaseAdaptivePolling, failed: true, want: domain.PhaseAdaptivePolling},
		{name: "geofencing near region edge", distance: 5500, speed: 30, from: domain.PhaseGeofencing, want: domain.PhaseGeofencing},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := calc.DeterminePhase(tc.distance, tc.speed, tc.from, tc.failed)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDeterminePhaseActiveHysteresisBand(t *testing.T) {
	t.Parallel()
	calc := calculator()
	entry := calc.Thresholds.ActiveEntryDistanceM
	exit := calc.Thresholds.ActiveExitDistanceM
	for d := entry + 1; d <= exit; d += 50 {
		if got := calc.DeterminePhase(d, 0, domain.PhaseActiveTracking, false); got != domain.PhaseActiveTracking {
			t.Fatalf("at %v m expected to stay active, got %s", d, got)
		}
	}
	if got := calc.DeterminePhase(exit+1, 0, domain.PhaseActiveTracking, false); got != domain.PhaseAdaptivePolling {
		t.Fatalf("past exit buffer expected adaptive polling, got %s", got)
	}
}

func TestDeterminePhaseDegradedModeNeverGeofences(t *testing.T) {
	t.Parallel()
	calc := calculator()
	for d := 0.0; d <= 200000; d += 733 {
		for _, speed := range []float64{0, 10, 90} {
			if got := calc.DeterminePhase(d, speed, domain.PhaseAdaptivePolling, true); got == domain.PhaseGeofencing {
				t.Fatalf("degraded mode returned geofencing at %v m, %v km/h", d, speed)
			}
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	t.Parallel()
	if err := domain.DefaultThresholds().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := domain.DefaultThresholds()
	bad.ActiveExitDistanceM = bad.ActiveEntryDistanceM
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for equal active band")
	}
	bad = domain.DefaultThresholds()
	bad.GeofenceExitDistanceM = 100
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for geofence exit below radius")
	}
}

func TestThresholdsFromTuning(t *testing.T) {
	t.Parallel()
	tuning := config.DefaultTuning()
	tuning.Phase.ActiveEntryDistanceM = 900
	tuning.Phase.ActiveExitDistanceM = 1200
	tuning.Phase.MinCooldown = 20 * time.Second

	got := domain.ThresholdsFrom(tuning.Phase)
	if got.ActiveEntryDistanceM != 900 || got.ActiveExitDistanceM != 1200 || got.MinCooldown != 20*time.Second {
		t.Fatalf("overlay not applied: %+v", got)
	}
	if got.GeofenceRadiusM != config.DefaultTuning().Phase.GeofenceRadiusM {
		t.Fatalf("geofence radius = %.0f", got.GeofenceRadiusM)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("thresholds from valid tuning: %v", err)
	}
	if domain.DefaultThresholds() != domain.ThresholdsFrom(config.DefaultTuning().Phase) {
		t.Fatalf("defaults drifted from config defaults")
	}
}
