package service

import (
	"context"
	"sync"

	hclog "github.com/hashicorp/go-hclog"

	"arrivalwatch/internal/modules/telemetry/domain"
	"arrivalwatch/internal/modules/telemetry/dto"
	telemetryin "arrivalwatch/internal/modules/telemetry/port/in"
	telemetryout "arrivalwatch/internal/modules/telemetry/port/out"
	"arrivalwatch/internal/platform/besteffort"
	"arrivalwatch/internal/platform/clock"
	"arrivalwatch/internal/platform/id"
	"arrivalwatch/internal/platform/logging"
)

type Logger struct {
	clock  clock.Clock
	ids    id.Generator
	store  telemetryout.Store
	runner besteffort.Runner
	logger hclog.Logger

	mu        sync.RWMutex
	sessionID string
}

func NewLogger(clk clock.Clock, ids id.Generator, store telemetryout.Store, runner besteffort.Runner, logger hclog.Logger) *Logger {
	return &Logger{clock: clk, ids: ids, store: store, runner: runner, logger: logging.OrNull(logger)}
}

var _ telemetryin.Usecase = (*Logger)(nil)

func (l *Logger) StartSession() string {
	sessionID := l.ids.New()
	l.mu.Lock()
	l.sessionID = sessionID
	l.mu.Unlock()
	l.LogEvent(string(domain.EventSessionStarted), nil)
	return sessionID
}

func (l *Logger) EndSession() {
	l.mu.Lock()
	l.sessionID = ""
	l.mu.Unlock()
}

func (l *Logger) SessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionID
}

// LogEvent is a no-op while no session is open.
func (l *Logger) LogEvent(eventType string, payload map[string]any) {
	sessionID := l.SessionID()
	if sessionID == "" {
		return
	}
	event := domain.Event{
		SessionID: sessionID,
		Type:      domain.EventType(eventType),
		Payload:   copyPayload(payload),
		WrittenAt: l.clock.Now(),
	}
	if err := event.Validate(); err != nil {
		l.logger.Warn("dropping telemetry event", "error", err)
		return
	}
	l.logger.Trace("telemetry", "session_id", sessionID, "type", eventType)
	l.runner.Submit("telemetry "+eventType, func(ctx context.Context) error {
		return l.store.Append(ctx, event)
	})
}

func (l *Logger) Tail(ctx context.Context, sessionID string, limit int) ([]dto.EventOutput, error) {
	if limit <= 0 {
		limit = 50
	}
	events, err := l.store.Tail(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EventOutput, 0, len(events))
	for _, event := range events {
		out = append(out, dto.EventOutput{
			ID:        event.ID,
			SessionID: event.SessionID,
			Type:      string(event.Type),
			Payload:   event.Payload,
			WrittenAt: event.WrittenAt,
		})
	}
	return out, nil
}

func copyPayload(payload map[string]any) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
