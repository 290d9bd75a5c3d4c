package in

import (
	"context"

	"arrivalwatch/internal/modules/routine/dto"
)

type Usecase interface {
	// Evaluate starts or stops routine tracking for the current time.
	Evaluate(ctx context.Context) (dto.EvaluationOutput, error)
	// Run evaluates periodically until ctx is done.
	Run(ctx context.Context) error
	List(ctx context.Context) ([]dto.RoutineOutput, error)
	Upsert(ctx context.Context, input dto.RoutineInput) (dto.RoutineOutput, error)
	Remove(ctx context.Context, id string) error
}
