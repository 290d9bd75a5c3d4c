package out

import (
	"context"
	"fmt"

	"arrivalwatch/internal/modules/tracking/domain"
	"arrivalwatch/internal/platform/clock"
	"arrivalwatch/internal/platform/track"
)

// ReplaySource serves fixes from a recorded track in process.
type ReplaySource struct {
	replay      *track.Replay
	clock       clock.Clock
	permissions map[string]domain.Permission
}

func NewReplaySource(replay *track.Replay, clk clock.Clock) *ReplaySource {
	return &ReplaySource{
		replay: replay,
		clock:  clk,
		permissions: map[string]domain.Permission{
			ScopeForeground: domain.PermissionGranted,
			ScopeBackground: domain.PermissionGranted,
		},
	}
}

// SetPermission overrides the answer for scope.
func (s *ReplaySource) SetPermission(scope string, permission domain.Permission) {
	s.permissions[scope] = permission
}

func (s *ReplaySource) Permission(_ context.Context, scope string) (domain.Permission, error) {
	permission, ok := s.permissions[scope]
	if !ok {
		return domain.PermissionUndetermined, fmt.Errorf("unknown permission scope %q", scope)
	}
	return permission, nil
}

func (s *ReplaySource) Fix(ctx context.Context) (domain.LocationSample, error) {
	if err := ctx.Err(); err != nil {
		return domain.LocationSample{}, err
	}
	return sampleFromPoint(s.replay.At(s.clock.Now())), nil
}

func sampleFromPoint(p track.Point) domain.LocationSample {
	return domain.LocationSample{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		SpeedMPS:  p.SpeedMPS,
		AccuracyM: p.AccuracyM,
		Timestamp: p.Timestamp,
	}
}
