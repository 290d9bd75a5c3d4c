package domain

import (
	"fmt"
	"strings"
	"time"
)

type Point struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Timestamp time.Time `json:"ts"`
}

// Record is the durable snapshot of one alarm's route. Keyed by alarm id.
type Record struct {
	AlarmID           string
	Route             []Point
	TraveledDistanceM float64
	LastCheckpointAt  time.Time
	Active            bool
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.AlarmID) == "" {
		return fmt.Errorf("checkpoint alarm id is required")
	}
	if r.TraveledDistanceM < 0 {
		return fmt.Errorf("traveled distance must be non-negative")
	}
	return nil
}

// Policy bounds how often a hot path may write.
type Policy struct {
	PointThreshold int
	Interval       time.Duration
}

// Due reports whether a write is owed after pointsSince new points and
// elapsed time since the last write.
func (p Policy) Due(pointsSince int, elapsed time.Duration) bool {
	return pointsSince >= p.PointThreshold || elapsed >= p.Interval
}
