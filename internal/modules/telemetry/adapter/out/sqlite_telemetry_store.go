package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arrivalwatch/internal/modules/telemetry/domain"
	telemetryout "arrivalwatch/internal/modules/telemetry/port/out"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type SQLiteTelemetryStore struct {
	db *sql.DB
}

func NewSQLiteTelemetryStore(db *sql.DB) telemetryout.Store {
	return &SQLiteTelemetryStore{db: db}
}

func (s *SQLiteTelemetryStore) Append(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode telemetry payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO telemetry_events (session_id, event_type, payload_json, written_at)
VALUES (?, ?, ?, ?);
`, event.SessionID, string(event.Type), string(payload), event.WrittenAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

func (s *SQLiteTelemetryStore) Tail(ctx context.Context, sessionID string, limit int) ([]domain.Event, error) {
	if sessionID == "" {
		err := s.db.QueryRowContext(ctx, `SELECT session_id FROM telemetry_events ORDER BY id DESC LIMIT 1;`).Scan(&sessionID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find latest telemetry session: %w", err)
		}
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, event_type, payload_json, written_at
FROM (
  SELECT id, session_id, event_type, payload_json, written_at
  FROM telemetry_events
  WHERE session_id = ?
  ORDER BY id DESC
  LIMIT ?
)
ORDER BY id ASC;
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query telemetry events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event   domain.Event
			kind    string
			payload string
			at      string
		)
		if err := rows.Scan(&event.ID, &event.SessionID, &kind, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		event.Type = domain.EventType(kind)
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			return nil, fmt.Errorf("decode telemetry payload: %w", err)
		}
		parsed, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parse telemetry time: %w", err)
		}
		event.WrittenAt = parsed
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry events: %w", err)
	}
	return events, nil
}
