package domain_test

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"arrivalwatch/internal/modules/tracking/domain"
	"arrivalwatch/internal/platform/geo"
)

func TestSessionAppendAccumulatesDistance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s := domain.NewSession("a1", "Home", domain.Coordinate{Latitude: 52.5, Longitude: 13.4}, 200, 1000, start)
	lat, lon := geo.Offset(52.5, 13.4, 100, 0)
	s.Append(domain.RoutePoint{Latitude: 52.5, Longitude: 13.4, Timestamp: start})
	n := s.Append(domain.RoutePoint{Latitude: lat, Longitude: lon, Timestamp: start.Add(10 * time.Second)})

	assert.Equal(t, 2, n)
	assert.InDelta(t, 100, s.TraveledDistanceM, 0.5)

	route := s.Route()
	route[0].Latitude = 0
	assert.Equal(t, 52.5, s.Route()[0].Latitude)
}

func TestSessionSpeedFor(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s := domain.NewSession("a1", "", domain.Coordinate{}, 200, 1000, start)
	assert.Equal(t, 36.0, s.SpeedFor(domain.LocationSample{SpeedMPS: 10}))
	assert.Equal(t, 0.0, s.SpeedFor(domain.LocationSample{SpeedMPS: domain.UnknownSpeed}))

	s.Append(domain.RoutePoint{Latitude: 0, Longitude: 0, Timestamp: start})
	lat, lon := geo.Offset(0, 0, 100, 0)
	derived := s.SpeedFor(domain.LocationSample{Latitude: lat, Longitude: lon, SpeedMPS: domain.UnknownSpeed, Timestamp: start.Add(10 * time.Second)})
	assert.InDelta(t, 36, derived, 0.2)

	s.SpeedKmh = 12
	assert.Equal(t, 12.0, s.SpeedFor(domain.LocationSample{SpeedMPS: domain.UnknownSpeed, Timestamp: start}))
}

func TestSessionProgress(t *testing.T) {
	t.Parallel()

	s := domain.NewSession("a1", "", domain.Coordinate{}, 200, 1000, time.Time{})
	s.DistanceM = 250
	assert.InDelta(t, 0.75, s.Progress(), 1e-9)
	s.DistanceM = 1500
	assert.Equal(t, 0.0, s.Progress())

	far := domain.NewSession("a1", "", domain.Coordinate{}, 200, math.Inf(1), time.Time{})
	assert.Equal(t, 0.0, far.Progress())
}

func TestLatchArrivalOnce(t *testing.T) {
	t.Parallel()

	s := domain.NewSession("a1", "", domain.Coordinate{}, 200, 1000, time.Time{})
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.LatchArrival() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, s.ArrivalTriggered())
}
