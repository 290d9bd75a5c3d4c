package out

import (
	"context"

	"arrivalwatch/internal/modules/routine/domain"
)

type Store interface {
	List(ctx context.Context) ([]domain.Routine, error)
	Upsert(ctx context.Context, routine domain.Routine) error
	Delete(ctx context.Context, id string) error
}
