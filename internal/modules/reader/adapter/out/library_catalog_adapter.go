package out

import (
	"context"

	libraryin "readingroom/internal/modules/library/port/in"
	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
)

type LibraryCatalogAdapter struct {
	library libraryin.Usecase
}

func NewLibraryCatalogAdapter(library libraryin.Usecase) readerout.Catalog {
	return &LibraryCatalogAdapter{library: library}
}

func (a *LibraryCatalogAdapter) DocumentMeta(ctx context.Context, documentID string) (domain.DocumentMeta, error) {
	doc, err := a.library.GetDocument(ctx, documentID)
	if err != nil {
		return domain.DocumentMeta{}, err
	}
	source := doc.FilePath
	if source == "" {
		source = doc.URL
	}
	return domain.DocumentMeta{
		ID:          doc.ID,
		Title:       doc.Title,
		SourceURL:   source,
		AuthorNames: doc.Authors,
	}, nil
}
