package in

import (
	"context"
	"time"

	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/modules/reader/dto"
)

type Usecase interface {
	Mount(ctx context.Context, input dto.MountInput) (ReadingView, error)
	// RelayTelemetry routes a message to the mounted view showing its document.
	RelayTelemetry(ctx context.Context, envelope domain.TelemetryEnvelope) (dto.RelayResult, error)
	Position(ctx context.Context, documentID string) (dto.StoredPosition, error)
	MarkFinished(ctx context.Context, documentID string) (dto.FinishResult, error)
}

// ReadingView is one mounted reading view. All methods are safe for concurrent
// use; Unmount releases everything acquired during mount.
type ReadingView interface {
	SurfaceReady()
	Scrolled(now time.Time)
	Poll(now time.Time)
	SavePosition(ctx context.Context) (dto.SavedPosition, error)
	MarkFinished(ctx context.Context) error
	UseBasicViewer(ctx context.Context) error
	ApplySettings(settings domain.Settings)
	Relay(msg domain.TelemetryMessage) error
	Page(n int) dto.PageView
	Snapshot() dto.Snapshot
	Unmount()
}
