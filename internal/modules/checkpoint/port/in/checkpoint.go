package in

import (
	"context"

	"arrivalwatch/internal/modules/checkpoint/dto"
)

type Usecase interface {
	// MaybeCheckpoint counts one new route point and schedules a write when
	// the policy says one is due. snapshot is called only for a due write; it
	// reports false when the route is gone. It never blocks on storage.
	MaybeCheckpoint(snapshot func() (dto.CheckpointInput, bool)) bool
	Reset()
	Finalize(alarmID string)
	Recover(ctx context.Context, alarmID string) (dto.CheckpointOutput, bool)
	Get(ctx context.Context, alarmID string) (dto.CheckpointOutput, error)
}
