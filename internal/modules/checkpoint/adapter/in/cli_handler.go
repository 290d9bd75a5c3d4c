package in

import (
	"context"

	checkpointdto "arrivalwatch/internal/modules/checkpoint/dto"
	checkpointin "arrivalwatch/internal/modules/checkpoint/port/in"
)

type CLIHandler struct {
	usecase checkpointin.Usecase
}

func NewCLIHandler(usecase checkpointin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Show(ctx context.Context, alarmID string) (checkpointdto.CheckpointOutput, error) {
	return h.usecase.Get(ctx, alarmID)
}
