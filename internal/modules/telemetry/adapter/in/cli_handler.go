package in

import (
	"context"

	telemetrydto "arrivalwatch/internal/modules/telemetry/dto"
	telemetryin "arrivalwatch/internal/modules/telemetry/port/in"
)

type CLIHandler struct {
	usecase telemetryin.Usecase
}

func NewCLIHandler(usecase telemetryin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Tail returns the newest events of sessionID, or of the most recent
// session when it is empty.
func (h CLIHandler) Tail(ctx context.Context, sessionID string, limit int) ([]telemetrydto.EventOutput, error) {
	return h.usecase.Tail(ctx, sessionID, limit)
}
