package domain

import (
	"math"
	"sync/atomic"
	"time"

	"arrivalwatch/internal/platform/geo"
)

// Session is the in-memory state of one tracking run. Fields other than the
// arrival latch are guarded by the orchestrator.
type Session struct {
	AlarmID           string
	Title             string
	Target            Coordinate
	RadiusM           float64
	StartedAt         time.Time
	LastProcessedAt   time.Time
	InitialDistanceM  float64
	DistanceM         float64
	SpeedKmh          float64
	TraveledDistanceM float64
	TelemetryID       string

	route   []RoutePoint
	arrived atomic.Bool
}

func NewSession(alarmID, title string, target Coordinate, radiusM, initialDistanceM float64, startedAt time.Time) *Session {
	return &Session{
		AlarmID:          alarmID,
		Title:            title,
		Target:           target,
		RadiusM:          radiusM,
		StartedAt:        startedAt,
		InitialDistanceM: initialDistanceM,
		DistanceM:        initialDistanceM,
	}
}

// Restore seeds the route from a persisted checkpoint.
func (s *Session) Restore(route []RoutePoint, traveledM float64) {
	s.route = append(make([]RoutePoint, 0, len(route)), route...)
	s.TraveledDistanceM = traveledM
}

// Append adds p to the route and returns the new route length.
func (s *Session) Append(p RoutePoint) int {
	if n := len(s.route); n > 0 {
		last := s.route[n-1]
		s.TraveledDistanceM += geo.DistanceM(last.Latitude, last.Longitude, p.Latitude, p.Longitude)
	}
	s.route = append(s.route, p)
	return len(s.route)
}

func (s *Session) RouteLen() int {
	return len(s.route)
}

func (s *Session) Route() []RoutePoint {
	return append([]RoutePoint(nil), s.route...)
}

// DistanceTo is the distance in meters from sample to the target.
func (s *Session) DistanceTo(sample LocationSample) float64 {
	return geo.DistanceM(sample.Latitude, sample.Longitude, s.Target.Latitude, s.Target.Longitude)
}

// SpeedFor prefers the provider speed and otherwise derives it from the last
// route point.
func (s *Session) SpeedFor(sample LocationSample) float64 {
	if sample.SpeedMPS >= 0 && !math.IsNaN(sample.SpeedMPS) {
		return geo.KmhFromMPS(sample.SpeedMPS)
	}
	n := len(s.route)
	if n == 0 {
		return 0
	}
	last := s.route[n-1]
	dt := sample.Timestamp.Sub(last.Timestamp).Seconds()
	if dt <= 0 {
		return s.SpeedKmh
	}
	d := geo.DistanceM(last.Latitude, last.Longitude, sample.Latitude, sample.Longitude)
	return geo.KmhFromMPS(d / dt)
}

// Progress is the fraction of the initial distance already covered.
func (s *Session) Progress() float64 {
	if s.InitialDistanceM <= 0 || math.IsInf(s.InitialDistanceM, 0) {
		return 0
	}
	p := 1 - s.DistanceM/s.InitialDistanceM
	return math.Max(0, math.Min(1, p))
}

// LatchArrival sets the arrival flag. Only the first caller gets true.
func (s *Session) LatchArrival() bool {
	return s.arrived.CompareAndSwap(false, true)
}

func (s *Session) ArrivalTriggered() bool {
	return s.arrived.Load()
}
