package in

import (
	"context"

	routinedto "arrivalwatch/internal/modules/routine/dto"
	routinein "arrivalwatch/internal/modules/routine/port/in"
)

type CLIHandler struct {
	usecase routinein.Usecase
}

func NewCLIHandler(usecase routinein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]routinedto.RoutineOutput, error) {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Add(ctx context.Context, input routinedto.RoutineInput) (routinedto.RoutineOutput, error) {
	return h.usecase.Upsert(ctx, input)
}

func (h CLIHandler) Remove(ctx context.Context, id string) error {
	return h.usecase.Remove(ctx, id)
}

func (h CLIHandler) Check(ctx context.Context) (routinedto.EvaluationOutput, error) {
	return h.usecase.Evaluate(ctx)
}

func (h CLIHandler) Run(ctx context.Context) error {
	return h.usecase.Run(ctx)
}
