package in

import (
	"context"

	"readingroom/internal/modules/library/dto"
)

type Usecase interface {
	AddFile(ctx context.Context, input dto.AddFileInput) (dto.DocumentOutput, error)
	AddURL(ctx context.Context, input dto.AddURLInput) (dto.DocumentOutput, error)
	PersistProgress(ctx context.Context, input dto.PersistProgressInput) (dto.DocumentOutput, error)
	ListDocuments(ctx context.Context) ([]dto.DocumentOutput, error)
	GetDocument(ctx context.Context, id string) (dto.DocumentDetailOutput, error)
	// UserProgress fails with apperrors.ErrNotFound for unknown documents.
	UserProgress(ctx context.Context, documentID string) (dto.UserProgressOutput, error)
	Reindex(ctx context.Context, input dto.ReindexInput) error
}
