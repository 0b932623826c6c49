package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"readingroom/internal/modules/library/domain"
	libraryout "readingroom/internal/modules/library/port/out"
	"readingroom/internal/platform/clock"
	apperrors "readingroom/internal/platform/errors"
	"readingroom/internal/platform/id"
	"readingroom/internal/platform/slug"
)

type DocumentService struct {
	clock     clock.Clock
	idGen     id.Generator
	store     libraryout.DocumentStore
	projector libraryout.DocumentIndexProjector

	// writeMu serializes note writes; progress may arrive from a timer goroutine.
	writeMu sync.Mutex
}

func NewDocumentService(clock clock.Clock, idGen id.Generator, store libraryout.DocumentStore, projector libraryout.DocumentIndexProjector) *DocumentService {
	return &DocumentService{clock: clock, idGen: idGen, store: store, projector: projector}
}

func (s *DocumentService) AddFile(ctx context.Context, filePath, title string, authors, tags []string) (domain.Document, string, error) {
	if strings.TrimSpace(filePath) == "" {
		return domain.Document{}, "", fmt.Errorf("%w: file path is required", apperrors.ErrInvalidInput)
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return domain.Document{}, "", fmt.Errorf("resolve file path: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	return s.add(ctx, domain.Document{
		Kind:     domain.DocumentKindPDF,
		Title:    title,
		Authors:  authors,
		FilePath: abs,
		Tags:     tags,
	})
}

func (s *DocumentService) AddURL(ctx context.Context, url, title string, authors, tags []string) (domain.Document, string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.Document{}, "", fmt.Errorf("%w: url is required", apperrors.ErrInvalidInput)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = url
	}
	kind := domain.DocumentKindWeb
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		kind = domain.DocumentKindPDF
	}
	return s.add(ctx, domain.Document{
		Kind:    kind,
		Title:   title,
		Authors: authors,
		URL:     url,
		Tags:    tags,
	})
}

func (s *DocumentService) add(ctx context.Context, doc domain.Document) (domain.Document, string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.store.List(ctx)
	if err != nil {
		return domain.Document{}, "", err
	}
	nextUserBook := 1
	slugs := map[string]bool{}
	for _, note := range existing {
		nextUserBook = max(nextUserBook, note.Document.UserBookID+1)
		slugs[note.Document.Slug] = true
	}

	now := s.clock.Now()
	doc.ID = s.idGen.New()
	doc.Slug = slug.Make(doc.Title)
	if slugs[doc.Slug] {
		doc.Slug = fmt.Sprintf("%s-%d", doc.Slug, nextUserBook)
	}
	doc.UserBookID = nextUserBook
	doc.Status = domain.StatusReading
	doc.AddedAt = now
	doc.UpdatedAt = now
	if err := doc.Validate(); err != nil {
		return domain.Document{}, "", fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	path, err := s.store.Save(ctx, domain.DocumentNote{Document: doc})
	if err != nil {
		return domain.Document{}, "", err
	}
	doc.NotePath = path
	if err := s.projector.UpsertDocument(ctx, doc); err != nil {
		return domain.Document{}, "", err
	}
	return doc, path, nil
}

// PersistProgress is the progress backend write for a user book.
func (s *DocumentService) PersistProgress(ctx context.Context, userBookID, pct int) (domain.Document, error) {
	if userBookID <= 0 {
		return domain.Document{}, fmt.Errorf("%w: user book id must be positive", apperrors.ErrInvalidInput)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	documentID, err := s.projector.DocumentIDForUserBook(ctx, userBookID)
	if err != nil {
		return domain.Document{}, fmt.Errorf("user book %d: %w", userBookID, err)
	}
	note, err := s.store.FindByID(ctx, documentID)
	if err != nil {
		return domain.Document{}, err
	}
	note.Document.ApplyProgress(pct, s.clock.Now())
	path, err := s.store.Save(ctx, note)
	if err != nil {
		return domain.Document{}, err
	}
	note.Document.NotePath = path
	if err := s.projector.UpsertDocument(ctx, note.Document); err != nil {
		return domain.Document{}, err
	}
	return note.Document, nil
}

func (s *DocumentService) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(notes))
	for _, note := range notes {
		out = append(out, note.Document)
	}
	return out, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, documentID string) (domain.Document, error) {
	note, err := s.store.FindByID(ctx, documentID)
	if err != nil {
		return domain.Document{}, err
	}
	return note.Document, nil
}

func (s *DocumentService) Reindex(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.projector.Reset(ctx); err != nil {
		return err
	}
	notes, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, note := range notes {
		if err := s.projector.UpsertDocument(ctx, note.Document); err != nil {
			return err
		}
	}
	return nil
}
