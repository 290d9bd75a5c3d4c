package dto

import "time"

type Point struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

type CheckpointInput struct {
	AlarmID           string
	Route             []Point
	TraveledDistanceM float64
}

type CheckpointOutput struct {
	AlarmID           string
	Route             []Point
	PointCount        int
	TraveledDistanceM float64
	LastCheckpointAt  time.Time
	Active            bool
}
