package in

import (
	"context"

	"arrivalwatch/internal/modules/telemetry/dto"
)

// Usecase records structured session events. Writes are fire-and-forget.
type Usecase interface {
	StartSession() string
	EndSession()
	SessionID() string
	LogEvent(eventType string, payload map[string]any)
	Tail(ctx context.Context, sessionID string, limit int) ([]dto.EventOutput, error)
}
