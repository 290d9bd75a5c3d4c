package out_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackingadapter "arrivalwatch/internal/modules/tracking/adapter/out"
	"arrivalwatch/internal/modules/tracking/domain"
	"arrivalwatch/internal/platform/geo"
)

var destination = domain.Coordinate{Latitude: 48.1374, Longitude: 11.5755}

type movingSource struct {
	mu     sync.Mutex
	northM float64
	err    error
}

func (s *movingSource) moveTo(northM float64) {
	s.mu.Lock()
	s.northM = northM
	s.mu.Unlock()
}

func (s *movingSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *movingSource) Permission(_ context.Context, scope string) (domain.Permission, error) {
	if scope == trackingadapter.ScopeBackground {
		return domain.PermissionDenied, nil
	}
	return domain.PermissionGranted, nil
}

func (s *movingSource) Fix(context.Context) (domain.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.LocationSample{}, s.err
	}
	lat, lon := geo.Offset(destination.Latitude, destination.Longitude, s.northM, 0)
	return domain.LocationSample{Latitude: lat, Longitude: lon, SpeedMPS: 3, AccuracyM: 5, Timestamp: time.Now()}, nil
}

type recorder struct {
	mu   sync.Mutex
	data []domain.TaskData
}

func (r *recorder) handle(_ context.Context, data domain.TaskData) error {
	r.mu.Lock()
	r.data = append(r.data, data)
	r.mu.Unlock()
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func (r *recorder) all() []domain.TaskData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TaskData(nil), r.data...)
}

func newProvider(t *testing.T, source trackingadapter.FixSource, rec *recorder) *trackingadapter.PollingProvider {
	t.Helper()
	registry := trackingadapter.NewMemoryTaskRegistry()
	require.NoError(t, registry.Register("task", rec.handle))
	provider := trackingadapter.NewPollingProvider(source, registry, 20*time.Millisecond, nil)
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestPollingProviderPermissionsAndFix(t *testing.T) {
	t.Parallel()
	source := &movingSource{northM: 500}
	provider := newProvider(t, source, &recorder{})
	ctx := context.Background()

	fg, err := provider.RequestForegroundPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionGranted, fg)
	bg, err := provider.RequestBackgroundPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionDenied, bg)

	fix, err := provider.CurrentLocation(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 500, geo.DistanceM(fix.Latitude, fix.Longitude, destination.Latitude, destination.Longitude), 1)
}

func TestPollingProviderFiltersByDistanceInterval(t *testing.T) {
	t.Parallel()
	source := &movingSource{northM: 900}
	rec := &recorder{}
	provider := newProvider(t, source, rec)

	require.NoError(t, provider.StartLocationUpdates(context.Background(), "task", domain.UpdateOptions{
		Accuracy: domain.AccuracyHighest, TimeInterval: 10 * time.Millisecond, DistanceIntervalM: 50,
	}))
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return rec.len() > 1 }, 60*time.Millisecond, 10*time.Millisecond)

	source.moveTo(800)
	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, 5*time.Millisecond)
	last := rec.all()[1].Locations[0]
	assert.InDelta(t, 800, geo.DistanceM(last.Latitude, last.Longitude, destination.Latitude, destination.Longitude), 1)

	require.NoError(t, provider.StopLocationUpdates(context.Background(), "task"))
	settled := rec.len()
	source.moveTo(100)
	assert.Never(t, func() bool { return rec.len() > settled }, 80*time.Millisecond, 10*time.Millisecond)
}

func TestPollingProviderReportsFixErrors(t *testing.T) {
	t.Parallel()
	source := &movingSource{}
	source.fail(errors.New("no satellites"))
	rec := &recorder{}
	provider := newProvider(t, source, rec)

	require.NoError(t, provider.StartLocationUpdates(context.Background(), "task", domain.UpdateOptions{TimeInterval: 10 * time.Millisecond}))
	require.Eventually(t, func() bool { return rec.len() > 0 }, time.Second, 5*time.Millisecond)
	assert.EqualError(t, rec.all()[0].Err, "no satellites")
}

func TestPollingProviderRegionTransitions(t *testing.T) {
	t.Parallel()
	source := &movingSource{northM: 3000}
	rec := &recorder{}
	provider := newProvider(t, source, rec)

	require.NoError(t, provider.StartRegionMonitoring(context.Background(), "task", []domain.Region{{
		Identifier: "destination", Center: destination, RadiusM: 1000, NotifyOnEnter: true, NotifyOnExit: true,
	}}))
	assert.Never(t, func() bool { return rec.len() > 0 }, 60*time.Millisecond, 10*time.Millisecond)

	source.moveTo(400)
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
	source.moveTo(2000)
	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, 5*time.Millisecond)

	events := rec.all()
	assert.Equal(t, domain.RegionEvent{Identifier: "destination", Kind: domain.RegionEnter}, *events[0].Region)
	assert.Equal(t, domain.RegionEvent{Identifier: "destination", Kind: domain.RegionExit}, *events[1].Region)
}

func TestPollingProviderEntersImmediatelyWhenStartingInside(t *testing.T) {
	t.Parallel()
	source := &movingSource{northM: 200}
	rec := &recorder{}
	provider := newProvider(t, source, rec)

	require.NoError(t, provider.StartRegionMonitoring(context.Background(), "task", []domain.Region{{
		Identifier: "destination", Center: destination, RadiusM: 1000, NotifyOnEnter: true,
	}}))
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.RegionEnter, rec.all()[0].Region.Kind)

	err := provider.StartRegionMonitoring(context.Background(), "task", nil)
	assert.Error(t, err)
}
