package domain

import (
	"fmt"
	"math"
	"time"
)

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", c.Longitude)
	}
	return nil
}

// RoutePoint is one entry of a session's route history. Never mutated once
// appended.
type RoutePoint struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Timestamp time.Time `json:"ts"`
}

// UnknownSpeed marks a sample whose provider did not report speed.
const UnknownSpeed = -1.0

type LocationSample struct {
	Latitude  float64
	Longitude float64
	SpeedMPS  float64
	AccuracyM float64
	Timestamp time.Time
}

func (s LocationSample) Coordinate() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

func (s LocationSample) Point() RoutePoint {
	return RoutePoint{Latitude: s.Latitude, Longitude: s.Longitude, Timestamp: s.Timestamp}
}

type Accuracy string

const (
	AccuracyLowest     Accuracy = "lowest"
	AccuracyLow        Accuracy = "low"
	AccuracyBalanced   Accuracy = "balanced"
	AccuracyHigh       Accuracy = "high"
	AccuracyHighest    Accuracy = "highest"
	AccuracyNavigation Accuracy = "navigation"
)

// UpdateOptions describe a periodic or continuous update subscription.
type UpdateOptions struct {
	Accuracy          Accuracy
	TimeInterval      time.Duration
	DistanceIntervalM float64
}

type Region struct {
	Identifier    string
	Center        Coordinate
	RadiusM       float64
	NotifyOnEnter bool
	NotifyOnExit  bool
}

type RegionEventKind string

const (
	RegionEnter RegionEventKind = "enter"
	RegionExit  RegionEventKind = "exit"
)

type RegionEvent struct {
	Identifier string
	Kind       RegionEventKind
}

// TaskData is what a platform background task hands to its handler.
type TaskData struct {
	Locations []LocationSample
	Region    *RegionEvent
	Err       error
}

type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)
