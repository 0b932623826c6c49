package usecase

import (
	"context"
	"fmt"
	"strings"

	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/modules/reader/dto"
	readerin "readingroom/internal/modules/reader/port/in"
	"readingroom/internal/modules/reader/service"
	apperrors "readingroom/internal/platform/errors"
)

type Interactor struct {
	svc *service.ReaderService
}

func NewInteractor(svc *service.ReaderService) readerin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Mount(ctx context.Context, input dto.MountInput) (readerin.ReadingView, error) {
	view, err := i.svc.Mount(ctx, input)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (i *Interactor) RelayTelemetry(_ context.Context, envelope domain.TelemetryEnvelope) (dto.RelayResult, error) {
	if strings.TrimSpace(envelope.DocumentID) == "" {
		return dto.RelayResult{}, fmt.Errorf("%w: document id is required", apperrors.ErrInvalidInput)
	}
	delivered, err := i.svc.Relay(envelope)
	if err != nil {
		return dto.RelayResult{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return dto.RelayResult{Delivered: delivered}, nil
}

func (i *Interactor) Position(ctx context.Context, documentID string) (dto.StoredPosition, error) {
	if strings.TrimSpace(documentID) == "" {
		return dto.StoredPosition{}, fmt.Errorf("%w: document id is required", apperrors.ErrInvalidInput)
	}
	return i.svc.Position(ctx, documentID)
}

func (i *Interactor) MarkFinished(ctx context.Context, documentID string) (dto.FinishResult, error) {
	if strings.TrimSpace(documentID) == "" {
		return dto.FinishResult{}, fmt.Errorf("%w: document id is required", apperrors.ErrInvalidInput)
	}
	return i.svc.FinishDocument(ctx, documentID)
}
