package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrivalwatch/internal/platform/config"
)

func TestNewDerivesPaths(t *testing.T) {
	t.Parallel()
	cfg, err := config.New("/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", ".arrivalwatch", "arrivalwatch.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join("/data", "routines.yaml"), cfg.RoutinesPath)
	assert.Equal(t, filepath.Join("/data", "config.yaml"), cfg.TuningPath)

	_, err = config.New("")
	require.Error(t, err)
}

func TestDefaultTuningIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, config.DefaultTuning().Validate())
}

func TestLoadTuningMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	tuning, err := config.LoadTuning(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTuning(), tuning)
}

func TestLoadTuningOverlaysFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "log_level: debug\nphase:\n  min_cooldown: 15s\ntracking:\n  milestone_every: 10\n  active:\n    time_interval: 3s\nroutines:\n  timezone: Europe/Berlin\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	tuning, err := config.LoadTuning(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", tuning.LogLevel)
	assert.Equal(t, 15*time.Second, tuning.Phase.MinCooldown)
	assert.Equal(t, 2*time.Minute, tuning.Phase.MaxCooldown)
	assert.Equal(t, 10, tuning.Tracking.MilestoneEvery)
	assert.Equal(t, 3*time.Second, tuning.Tracking.Active.TimeInterval)
	assert.Equal(t, "highest", tuning.Tracking.Active.Accuracy)
	assert.Equal(t, "Europe/Berlin", tuning.Routines.Timezone)
}

func TestLoadTuningRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"zero speed":        "phase:\n  min_speed_kmh: 0\n",
		"inverted cooldown": "phase:\n  min_cooldown: 10m\n",
		"bad accuracy":      "tracking:\n  polling:\n    accuracy: extreme\n",
		"bad level":         "log_level: loud\n",
		"bad yaml":          "phase: [\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
			_, err := config.LoadTuning(path)
			require.Error(t, err)
		})
	}
}

func TestRoutineLocation(t *testing.T) {
	t.Parallel()
	loc, err := config.RoutineTuning{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = config.RoutineTuning{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = config.RoutineTuning{Timezone: "Mars/Olympus"}.Location()
	require.Error(t, err)
}
