package apperrors

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrNoActiveSession     = errors.New("no active tracking session")
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrGeofenceUnavailable = errors.New("region monitoring unavailable")
)
