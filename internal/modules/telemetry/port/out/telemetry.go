package out

import (
	"context"

	"arrivalwatch/internal/modules/telemetry/domain"
)

type Store interface {
	Append(ctx context.Context, event domain.Event) error
	// Tail returns the newest limit events of a session, oldest first. An
	// empty sessionID selects the most recent session.
	Tail(ctx context.Context, sessionID string, limit int) ([]domain.Event, error)
}
