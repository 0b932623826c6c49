package usecase

import (
	"context"
	"strings"

	"readingroom/internal/modules/library/domain"
	"readingroom/internal/modules/library/dto"
	libraryin "readingroom/internal/modules/library/port/in"
	"readingroom/internal/modules/library/service"
)

type Interactor struct {
	svc *service.DocumentService
}

func NewInteractor(svc *service.DocumentService) libraryin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) AddFile(ctx context.Context, input dto.AddFileInput) (dto.DocumentOutput, error) {
	doc, _, err := i.svc.AddFile(ctx, input.Path, input.Title, cleanList(input.Authors), cleanList(input.Tags))
	if err != nil {
		return dto.DocumentOutput{}, err
	}
	return toOutput(doc), nil
}

func (i *Interactor) AddURL(ctx context.Context, input dto.AddURLInput) (dto.DocumentOutput, error) {
	doc, _, err := i.svc.AddURL(ctx, input.URL, input.Title, cleanList(input.Authors), cleanList(input.Tags))
	if err != nil {
		return dto.DocumentOutput{}, err
	}
	return toOutput(doc), nil
}

func (i *Interactor) PersistProgress(ctx context.Context, input dto.PersistProgressInput) (dto.DocumentOutput, error) {
	doc, err := i.svc.PersistProgress(ctx, input.UserBookID, input.ProgressPct)
	if err != nil {
		return dto.DocumentOutput{}, err
	}
	return toOutput(doc), nil
}

func (i *Interactor) ListDocuments(ctx context.Context) ([]dto.DocumentOutput, error) {
	docs, err := i.svc.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DocumentOutput, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toOutput(doc))
	}
	return out, nil
}

func (i *Interactor) GetDocument(ctx context.Context, id string) (dto.DocumentDetailOutput, error) {
	doc, err := i.svc.GetDocument(ctx, id)
	if err != nil {
		return dto.DocumentDetailOutput{}, err
	}
	return dto.DocumentDetailOutput{
		ID:         doc.ID,
		Title:      doc.Title,
		Kind:       string(doc.Kind),
		Authors:    doc.Authors,
		URL:        doc.URL,
		FilePath:   doc.FilePath,
		NotePath:   doc.NotePath,
		Tags:       doc.Tags,
		UserBookID: doc.UserBookID,
		Status:     doc.Status,
		Percent:    doc.ProgressPct,
	}, nil
}

func (i *Interactor) UserProgress(ctx context.Context, documentID string) (dto.UserProgressOutput, error) {
	doc, err := i.svc.GetDocument(ctx, documentID)
	if err != nil {
		return dto.UserProgressOutput{}, err
	}
	return dto.UserProgressOutput{DocumentID: doc.ID, UserBookID: doc.UserBookID, ProgressPct: doc.ProgressPct}, nil
}

func (i *Interactor) Reindex(ctx context.Context, _ dto.ReindexInput) error {
	return i.svc.Reindex(ctx)
}

func toOutput(doc domain.Document) dto.DocumentOutput {
	return dto.DocumentOutput{
		ID:         doc.ID,
		Title:      doc.Title,
		Kind:       string(doc.Kind),
		Authors:    doc.Authors,
		UserBookID: doc.UserBookID,
		Status:     doc.Status,
		Percent:    doc.ProgressPct,
		NotePath:   doc.NotePath,
	}
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
