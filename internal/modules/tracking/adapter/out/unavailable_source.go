package out

import (
	"context"
	"errors"

	"arrivalwatch/internal/modules/tracking/domain"
)

// ErrNoLocationSource is returned by UnavailableSource for every fix.
var ErrNoLocationSource = errors.New("no location source configured")

// UnavailableSource backs commands that never track. Permission is always
// denied so an accidental start fails fast.
type UnavailableSource struct{}

func (UnavailableSource) Permission(context.Context, string) (domain.Permission, error) {
	return domain.PermissionDenied, nil
}

func (UnavailableSource) Fix(context.Context) (domain.LocationSample, error) {
	return domain.LocationSample{}, ErrNoLocationSource
}
