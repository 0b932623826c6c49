package in

import (
	"context"

	"readingroom/internal/modules/reader/dto"
	readerin "readingroom/internal/modules/reader/port/in"
)

type CLIHandler struct {
	usecase readerin.Usecase
}

func NewCLIHandler(usecase readerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Position(ctx context.Context, documentID string) (dto.StoredPosition, error) {
	return h.usecase.Position(ctx, documentID)
}

func (h CLIHandler) Finish(ctx context.Context, documentID string) (dto.FinishResult, error) {
	return h.usecase.MarkFinished(ctx, documentID)
}

func (h CLIHandler) Relay(ctx context.Context, envelope dto.TelemetryEnvelope) (dto.RelayResult, error) {
	return h.usecase.RelayTelemetry(ctx, envelope)
}
