package out

import (
	"context"

	"arrivalwatch/internal/modules/tracking/domain"
)

// LocationProvider is the platform location service. Providers deliver
// samples and region events by dispatching the named task through a
// TaskRegistry from their own goroutine. Stop calls must not wait on that
// goroutine.
type LocationProvider interface {
	RequestForegroundPermission(ctx context.Context) (domain.Permission, error)
	RequestBackgroundPermission(ctx context.Context) (domain.Permission, error)
	CurrentLocation(ctx context.Context) (domain.LocationSample, error)
	StartRegionMonitoring(ctx context.Context, task string, regions []domain.Region) error
	StopRegionMonitoring(ctx context.Context, task string) error
	StartLocationUpdates(ctx context.Context, task string, options domain.UpdateOptions) error
	StopLocationUpdates(ctx context.Context, task string) error
}

type TaskHandler func(ctx context.Context, data domain.TaskData) error

// TaskRegistry binds background task names to handlers.
type TaskRegistry interface {
	Register(name string, handler TaskHandler) error
	Unregister(name string)
	Registered(name string) bool
	Dispatch(ctx context.Context, name string, data domain.TaskData) error
}
