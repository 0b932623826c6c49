package in

import (
	"context"

	"readingroom/internal/modules/library/dto"
	libraryin "readingroom/internal/modules/library/port/in"
)

type CLIHandler struct {
	usecase libraryin.Usecase
}

func NewCLIHandler(usecase libraryin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) AddFile(ctx context.Context, path, title string, authors, tags []string) (dto.DocumentOutput, error) {
	return h.usecase.AddFile(ctx, dto.AddFileInput{Path: path, Title: title, Authors: authors, Tags: tags})
}

func (h CLIHandler) AddURL(ctx context.Context, url, title string, authors, tags []string) (dto.DocumentOutput, error) {
	return h.usecase.AddURL(ctx, dto.AddURLInput{URL: url, Title: title, Authors: authors, Tags: tags})
}

func (h CLIHandler) ListDocuments(ctx context.Context) ([]dto.DocumentOutput, error) {
	return h.usecase.ListDocuments(ctx)
}

func (h CLIHandler) GetDocument(ctx context.Context, id string) (dto.DocumentDetailOutput, error) {
	return h.usecase.GetDocument(ctx, id)
}

func (h CLIHandler) Reindex(ctx context.Context) error {
	return h.usecase.Reindex(ctx, dto.ReindexInput{})
}
