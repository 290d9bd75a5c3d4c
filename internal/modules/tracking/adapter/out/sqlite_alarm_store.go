package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"arrivalwatch/internal/modules/tracking/domain"
	trackingout "arrivalwatch/internal/modules/tracking/port/out"
	apperrors "arrivalwatch/internal/platform/errors"
	"arrivalwatch/internal/platform/tx"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type SQLiteAlarmStore struct {
	db *sql.DB
	tx tx.Manager
}

func NewSQLiteAlarmStore(db *sql.DB, manager tx.Manager) trackingout.AlarmStore {
	if manager == nil {
		manager = tx.NewSQLManager(db)
	}
	return &SQLiteAlarmStore{db: db, tx: manager}
}

func (s *SQLiteAlarmStore) Save(ctx context.Context, alarm domain.Alarm) error {
	if err := alarm.Validate(); err != nil {
		return fmt.Errorf("save alarm: %w: %v", apperrors.ErrInvalidInput, err)
	}
	return s.tx.Within(ctx, func(ctx context.Context) error {
		exec := tx.From(ctx, s.db)
		if alarm.Active {
			if _, err := exec.ExecContext(ctx, `UPDATE alarms SET active = 0 WHERE active = 1 AND id <> ?`, alarm.ID); err != nil {
				return fmt.Errorf("deactivate other alarms: %w", err)
			}
		}
		const stmt = `
INSERT INTO alarms (id, title, latitude, longitude, radius_m, sound_key, alert_type, source, routine_id, active, dismissed, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title,
  latitude=excluded.latitude,
  longitude=excluded.longitude,
  radius_m=excluded.radius_m,
  sound_key=excluded.sound_key,
  alert_type=excluded.alert_type,
  source=excluded.source,
  routine_id=excluded.routine_id,
  active=excluded.active,
  dismissed=excluded.dismissed;
`
		_, err := exec.ExecContext(ctx, stmt,
			alarm.ID,
			alarm.Title,
			alarm.Target.Latitude,
			alarm.Target.Longitude,
			alarm.RadiusM,
			alarm.SoundKey,
			string(alarm.AlertType),
			string(alarm.Source),
			alarm.RoutineID,
			boolToInt(alarm.Active),
			boolToInt(alarm.Dismissed),
			alarm.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("upsert alarm: %w", err)
		}
		return nil
	})
}

const selectAlarm = `
SELECT id, title, latitude, longitude, radius_m, sound_key, alert_type, source, routine_id, active, dismissed, created_at
FROM alarms
`

func (s *SQLiteAlarmStore) Get(ctx context.Context, id string) (domain.Alarm, error) {
	alarm, err := scanAlarm(s.db.QueryRowContext(ctx, selectAlarm+`WHERE id = ?;`, id))
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("alarm %s: %w", id, err)
	}
	return alarm, nil
}

func (s *SQLiteAlarmStore) Active(ctx context.Context) (domain.Alarm, error) {
	alarm, err := scanAlarm(s.db.QueryRowContext(ctx, selectAlarm+`WHERE active = 1 ORDER BY created_at DESC LIMIT 1;`))
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("active alarm: %w", err)
	}
	return alarm, nil
}

func (s *SQLiteAlarmStore) List(ctx context.Context, limit int) ([]domain.Alarm, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectAlarm+`ORDER BY created_at DESC, id ASC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}
	defer rows.Close()
	var alarms []domain.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarms: %w", err)
	}
	return alarms, nil
}

func (s *SQLiteAlarmStore) Dismiss(ctx context.Context, id string) error {
	return s.update(ctx, `UPDATE alarms SET dismissed = 1, active = 0 WHERE id = ?`, id)
}

func (s *SQLiteAlarmStore) Deactivate(ctx context.Context, id string) error {
	return s.update(ctx, `UPDATE alarms SET active = 0 WHERE id = ?`, id)
}

func (s *SQLiteAlarmStore) update(ctx context.Context, stmt, id string) error {
	res, err := s.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("update alarm: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alarm: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alarm %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row rowScanner) (domain.Alarm, error) {
	var (
		alarm     domain.Alarm
		alertType string
		source    string
		active    int
		dismissed int
		createdAt string
	)
	err := row.Scan(
		&alarm.ID,
		&alarm.Title,
		&alarm.Target.Latitude,
		&alarm.Target.Longitude,
		&alarm.RadiusM,
		&alarm.SoundKey,
		&alertType,
		&source,
		&alarm.RoutineID,
		&active,
		&dismissed,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alarm{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("scan alarm: %w", err)
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("parse alarm time: %w", err)
	}
	alarm.AlertType = domain.AlertType(alertType)
	alarm.Source = domain.AlarmSource(source)
	alarm.Active = active == 1
	alarm.Dismissed = dismissed == 1
	alarm.CreatedAt = parsed
	return alarm, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
