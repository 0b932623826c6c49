package out

import (
	"context"
	"errors"

	"readingroom/internal/modules/library/dto"
	libraryin "readingroom/internal/modules/library/port/in"
	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
	apperrors "readingroom/internal/platform/errors"
)

// LibraryProgressAdapter is the progress backend: the library keeps one user
// book per catalog document.
type LibraryProgressAdapter struct {
	library libraryin.Usecase
}

func NewLibraryProgressAdapter(library libraryin.Usecase) *LibraryProgressAdapter {
	return &LibraryProgressAdapter{library: library}
}

var (
	_ readerout.ProgressWriter = (*LibraryProgressAdapter)(nil)
	_ readerout.ProgressReader = (*LibraryProgressAdapter)(nil)
)

func (a *LibraryProgressAdapter) Persist(ctx context.Context, userBookID, progressPct int) error {
	_, err := a.library.PersistProgress(ctx, dto.PersistProgressInput{UserBookID: userBookID, ProgressPct: progressPct})
	return err
}

func (a *LibraryProgressAdapter) UserProgress(ctx context.Context, documentID string) (domain.UserProgress, bool, error) {
	progress, err := a.library.UserProgress(ctx, documentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, err
	}
	return domain.UserProgress{UserBookID: progress.UserBookID, ProgressPct: progress.ProgressPct}, true, nil
}
