package out

import (
	"context"

	"arrivalwatch/internal/modules/checkpoint/domain"
)

type Store interface {
	Upsert(ctx context.Context, record domain.Record) error
	Deactivate(ctx context.Context, alarmID string) error
	Get(ctx context.Context, alarmID string) (domain.Record, error)
}
