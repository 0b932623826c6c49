package usecase_test

import (
	"context"
	"errors"
	"testing"

	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/modules/reader/dto"
	readerin "readingroom/internal/modules/reader/port/in"
	readerout "readingroom/internal/modules/reader/port/out"
	"readingroom/internal/modules/reader/service"
	"readingroom/internal/modules/reader/usecase"
	apperrors "readingroom/internal/platform/errors"
)

type fakeCatalog struct{}

func (fakeCatalog) DocumentMeta(_ context.Context, id string) (domain.DocumentMeta, error) {
	if id == "missing" {
		return domain.DocumentMeta{}, apperrors.ErrNotFound
	}
	return domain.DocumentMeta{ID: id, Title: "Doc", SourceURL: "/tmp/doc.pdf"}, nil
}

type failingSource struct{}

func (failingSource) Open(_ context.Context, url string) (readerout.OpenDocument, error) {
	return nil, &domain.LoadError{URL: url, Err: errors.New("not a pdf")}
}

type emptyStore struct{}

func (emptyStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (emptyStore) Set(context.Context, string, string) error         { return nil }

type noProgress struct{}

func (noProgress) UserProgress(context.Context, string) (domain.UserProgress, bool, error) {
	return domain.UserProgress{}, false, nil
}

type nopWriter struct{}

func (nopWriter) Persist(context.Context, int, int) error { return nil }

type stillViewport struct{}

func (stillViewport) Geometry() (domain.Geometry, error) { return domain.Geometry{}, nil }
func (stillViewport) PageBounds() []domain.PageBounds    { return nil }
func (stillViewport) ScrollTo(float64)                   {}

func newUsecase() (*service.TelemetryHub, readerin.Usecase) {
	hub := service.NewTelemetryHub()
	return hub, usecase.NewInteractor(service.NewReaderService(service.Dependencies{
		Source:   failingSource{},
		Store:    emptyStore{},
		Writer:   nopWriter{},
		Progress: noProgress{},
		Catalog:  fakeCatalog{},
		Hub:      hub,
	}))
}

func TestMountUnknownDocumentFails(t *testing.T) {
	t.Parallel()
	_, uc := newUsecase()
	if _, err := uc.Mount(context.Background(), dto.MountInput{DocumentID: "missing", Viewport: stillViewport{}}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMountUndecodableDocumentStartsInFallback(t *testing.T) {
	t.Parallel()
	_, uc := newUsecase()
	view, err := uc.Mount(context.Background(), dto.MountInput{DocumentID: "42", Viewport: stillViewport{}})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer view.Unmount()
	snap := view.Snapshot()
	if snap.Mode != domain.ModeFallback || snap.LoadError == "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestRelayTelemetryReachesMountedView(t *testing.T) {
	t.Parallel()
	_, uc := newUsecase()
	view, err := uc.Mount(context.Background(), dto.MountInput{DocumentID: "42", Viewport: stillViewport{}})
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer view.Unmount()

	progress := 25.0
	msg := domain.TelemetryMessage{Type: domain.TelemetryScroll, Progress: &progress}
	result, err := uc.RelayTelemetry(context.Background(), domain.TelemetryEnvelope{DocumentID: "42", Message: msg})
	if err != nil || !result.Delivered {
		t.Fatalf("relay: %+v %v", result, err)
	}
	result, err = uc.RelayTelemetry(context.Background(), domain.TelemetryEnvelope{DocumentID: "7", Message: msg})
	if err != nil || result.Delivered {
		t.Fatalf("message for an unmounted document must not be delivered: %+v %v", result, err)
	}
	if _, err := uc.RelayTelemetry(context.Background(), domain.TelemetryEnvelope{DocumentID: "42", Message: domain.TelemetryMessage{Type: "zoom"}}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestMarkFinishedRequiresUserBook(t *testing.T) {
	t.Parallel()
	_, uc := newUsecase()
	if _, err := uc.MarkFinished(context.Background(), "42"); !errors.Is(err, apperrors.ErrUnknownUserBook) {
		t.Fatalf("expected unknown user book, got %v", err)
	}
	if _, err := uc.Position(context.Background(), " "); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
