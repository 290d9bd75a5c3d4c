package usecase

import (
	"context"
	"fmt"
	"strings"

	"arrivalwatch/internal/modules/routine/domain"
	"arrivalwatch/internal/modules/routine/dto"
	routinein "arrivalwatch/internal/modules/routine/port/in"
	routineout "arrivalwatch/internal/modules/routine/port/out"
	"arrivalwatch/internal/modules/routine/service"
	apperrors "arrivalwatch/internal/platform/errors"
)

type Interactor struct {
	scheduler *service.Scheduler
	store     routineout.Store
}

func NewInteractor(scheduler *service.Scheduler, store routineout.Store) routinein.Usecase {
	return &Interactor{scheduler: scheduler, store: store}
}

func (i *Interactor) Evaluate(ctx context.Context) (dto.EvaluationOutput, error) {
	return i.scheduler.Evaluate(ctx)
}

func (i *Interactor) Run(ctx context.Context) error {
	return i.scheduler.Run(ctx)
}

func (i *Interactor) List(ctx context.Context) ([]dto.RoutineOutput, error) {
	routines, err := i.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := i.scheduler.Now()
	state := i.scheduler.State()
	out := make([]dto.RoutineOutput, 0, len(routines))
	for _, routine := range routines {
		item := toOutput(routine)
		item.InWindow = routine.InWindow(now)
		item.Fulfilled = state.Fulfilled[routine.ID]
		item.Active = state.ActiveRoutineID == routine.ID
		out = append(out, item)
	}
	return out, nil
}

func (i *Interactor) Upsert(ctx context.Context, input dto.RoutineInput) (dto.RoutineOutput, error) {
	routine := domain.Routine{
		ID:        strings.TrimSpace(input.ID),
		Name:      strings.TrimSpace(input.Name),
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		RadiusM:   input.RadiusM,
		Start:     input.Start,
		End:       input.End,
		Days:      input.Days,
		Enabled:   input.Enabled,
		SoundKey:  input.SoundKey,
		AlertType: input.AlertType,
	}
	if err := routine.Validate(); err != nil {
		return dto.RoutineOutput{}, fmt.Errorf("upsert routine: %w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := i.store.Upsert(ctx, routine); err != nil {
		return dto.RoutineOutput{}, err
	}
	return toOutput(routine), nil
}

func (i *Interactor) Remove(ctx context.Context, id string) error {
	return i.store.Delete(ctx, strings.TrimSpace(id))
}

func toOutput(routine domain.Routine) dto.RoutineOutput {
	return dto.RoutineOutput{
		ID:        routine.ID,
		Name:      routine.Name,
		Latitude:  routine.Latitude,
		Longitude: routine.Longitude,
		RadiusM:   routine.RadiusM,
		Start:     routine.Start,
		End:       routine.End,
		Days:      append([]int(nil), routine.Days...),
		Enabled:   routine.Enabled,
	}
}
