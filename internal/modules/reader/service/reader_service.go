package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/modules/reader/dto"
	readerout "readingroom/internal/modules/reader/port/out"
	"readingroom/internal/platform/clock"
	apperrors "readingroom/internal/platform/errors"
	"readingroom/internal/platform/id"
)

type Dependencies struct {
	Source    readerout.DocumentSource
	Store     readerout.PositionStore
	Writer    readerout.ProgressWriter
	Progress  readerout.ProgressReader
	Catalog   readerout.Catalog
	Publisher readerout.EventPublisher
	Viewer    readerout.Viewer
	Hub       *TelemetryHub
	Clock     clock.Clock
	IDs       id.Generator
	Logger    hclog.Logger
	SyncDelay time.Duration
	// PollInterval drives relayed and time signals while mounted; zero disables
	// the internal ticker.
	PollInterval time.Duration
}

type ReaderService struct {
	deps Dependencies
}

func NewReaderService(deps Dependencies) *ReaderService {
	if deps.Clock == nil {
		deps.Clock = clock.SystemClock{}
	}
	if deps.IDs == nil {
		deps.IDs = id.UUID{}
	}
	if deps.Hub == nil {
		deps.Hub = NewTelemetryHub()
	}
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	return &ReaderService{deps: deps}
}

// Mount creates the reading view for a document. A document that cannot be
// opened puts the view in fallback mode; only catalog failures abort the mount.
func (s *ReaderService) Mount(ctx context.Context, input dto.MountInput) (*Controller, error) {
	documentID := strings.TrimSpace(input.DocumentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", apperrors.ErrInvalidInput)
	}
	if input.Viewport == nil {
		return nil, fmt.Errorf("%w: viewport is required", apperrors.ErrInvalidInput)
	}
	meta, err := s.deps.Catalog.DocumentMeta(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document meta: %w", err)
	}
	return mountController(ctx, s.deps, meta, input), nil
}

func (s *ReaderService) Relay(envelope domain.TelemetryEnvelope) (bool, error) {
	return s.deps.Hub.Deliver(envelope)
}

// Position reports what is stored locally and on the backend for a document.
func (s *ReaderService) Position(ctx context.Context, documentID string) (dto.StoredPosition, error) {
	out := dto.StoredPosition{DocumentID: documentID}
	if offset, ok, err := readStored(ctx, s.deps.Store, domain.PositionKey(documentID)); err != nil {
		return dto.StoredPosition{}, err
	} else if ok {
		out.ScrollTop = &offset
	}
	if pct, ok, err := readStored(ctx, s.deps.Store, domain.ProgressKey(documentID)); err != nil {
		return dto.StoredPosition{}, err
	} else if ok {
		out.StoredProgressPct = &pct
	}
	progress, ok, err := s.deps.Progress.UserProgress(ctx, documentID)
	if err != nil {
		return dto.StoredPosition{}, err
	}
	if ok {
		out.BackendProgress = &progress
	}
	return out, nil
}

// FinishDocument marks a document read without mounting a view.
func (s *ReaderService) FinishDocument(ctx context.Context, documentID string) (dto.FinishResult, error) {
	progress, ok, err := s.deps.Progress.UserProgress(ctx, documentID)
	if err != nil {
		return dto.FinishResult{}, err
	}
	if !ok {
		return dto.FinishResult{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownUserBook, documentID)
	}
	sync := NewProgressSync(SyncConfig{
		DocumentID:   documentID,
		UserBookID:   progress.UserBookID,
		PersistedPct: progress.ProgressPct,
		Writer:       s.deps.Writer,
		Publisher:    s.deps.Publisher,
		Clock:        s.deps.Clock,
		Logger:       s.deps.Logger.Named("sync"),
	})
	defer sync.Close()
	if err := writeStored(ctx, s.deps.Store, domain.ProgressKey(documentID), 100); err != nil {
		s.deps.Logger.Warn("store progress failed", "document", documentID, "error", err)
	}
	if err := sync.Flush(ctx, 100); err != nil {
		return dto.FinishResult{}, err
	}
	return dto.FinishResult{DocumentID: documentID, UserBookID: progress.UserBookID, ProgressPct: 100}, nil
}

func readStored(ctx context.Context, store readerout.PositionStore, key string) (float64, bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return 0, false, &domain.StorageError{Key: key, Err: err}
	}
	if !ok {
		return 0, false, nil
	}
	v, err := domain.ParseStored(raw)
	if err != nil {
		return 0, false, &domain.StorageError{Key: key, Err: err}
	}
	return v, true, nil
}

func writeStored(ctx context.Context, store readerout.PositionStore, key string, v float64) error {
	if err := store.Set(ctx, key, domain.FormatStored(v)); err != nil {
		return &domain.StorageError{Key: key, Err: err}
	}
	return nil
}
