package out_test

import (
	"context"
	"errors"
	"testing"

	trackingadapter "arrivalwatch/internal/modules/tracking/adapter/out"
	"arrivalwatch/internal/modules/tracking/domain"
	apperrors "arrivalwatch/internal/platform/errors"
)

func TestMemoryTaskRegistryDispatch(t *testing.T) {
	t.Parallel()
	registry := trackingadapter.NewMemoryTaskRegistry()
	ctx := context.Background()

	var got []domain.TaskData
	if err := registry.Register("location", func(_ context.Context, data domain.TaskData) error {
		got = append(got, data)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !registry.Registered("location") {
		t.Fatalf("expected location registered")
	}
	data := domain.TaskData{Locations: []domain.LocationSample{{Latitude: 1, Longitude: 2}}}
	if err := registry.Dispatch(ctx, "location", data); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(got) != 1 || got[0].Locations[0].Latitude != 1 {
		t.Fatalf("unexpected deliveries: %+v", got)
	}

	registry.Unregister("location")
	if err := registry.Dispatch(ctx, "location", data); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found after unregister, got %v", err)
	}
}

func TestMemoryTaskRegistryRejectsEmptyRegistration(t *testing.T) {
	t.Parallel()
	registry := trackingadapter.NewMemoryTaskRegistry()
	if err := registry.Register(" ", func(context.Context, domain.TaskData) error { return nil }); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := registry.Register("geofence", nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
