package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arrivalwatch/internal/modules/checkpoint/domain"
	checkpointout "arrivalwatch/internal/modules/checkpoint/port/out"
	apperrors "arrivalwatch/internal/platform/errors"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type SQLiteCheckpointStore struct {
	db *sql.DB
}

func NewSQLiteCheckpointStore(db *sql.DB) checkpointout.Store {
	return &SQLiteCheckpointStore{db: db}
}

func (s *SQLiteCheckpointStore) Upsert(ctx context.Context, record domain.Record) error {
	route, err := json.Marshal(record.Route)
	if err != nil {
		return fmt.Errorf("encode checkpoint route: %w", err)
	}
	const stmt = `
INSERT INTO checkpoints (alarm_id, route_json, point_count, traveled_distance_m, last_checkpoint_at, active)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(alarm_id) DO UPDATE SET
  route_json=excluded.route_json,
  point_count=excluded.point_count,
  traveled_distance_m=excluded.traveled_distance_m,
  last_checkpoint_at=excluded.last_checkpoint_at,
  active=excluded.active;
`
	_, err = s.db.ExecContext(ctx, stmt,
		record.AlarmID,
		string(route),
		len(record.Route),
		record.TraveledDistanceM,
		record.LastCheckpointAt.UTC().Format(timeLayout),
		boolToInt(record.Active),
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteCheckpointStore) Deactivate(ctx context.Context, alarmID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE checkpoints SET active = 0 WHERE alarm_id = ?`, alarmID); err != nil {
		return fmt.Errorf("deactivate checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteCheckpointStore) Get(ctx context.Context, alarmID string) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT alarm_id, route_json, traveled_distance_m, last_checkpoint_at, active
FROM checkpoints
WHERE alarm_id = ?;
`, alarmID)
	var (
		record domain.Record
		route  string
		at     string
		active int
	)
	if err := row.Scan(&record.AlarmID, &route, &record.TraveledDistanceM, &at, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, fmt.Errorf("checkpoint %s: %w", alarmID, apperrors.ErrNotFound)
		}
		return domain.Record{}, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(route), &record.Route); err != nil {
		return domain.Record{}, fmt.Errorf("decode checkpoint route: %w", err)
	}
	parsed, err := time.Parse(timeLayout, at)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse checkpoint time: %w", err)
	}
	record.LastCheckpointAt = parsed
	record.Active = active == 1
	return record, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
