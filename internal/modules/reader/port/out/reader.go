package out

import (
	"context"

	"readingroom/internal/modules/reader/domain"
)

// DocumentSource opens documents by URL. Failures are *domain.LoadError.
type DocumentSource interface {
	Open(ctx context.Context, url string) (OpenDocument, error)
}

// OpenDocument is a decoded document handle. Page and Render fail with
// *domain.PageError and are idempotent per page number.
type OpenDocument interface {
	PageCount() int
	Page(ctx context.Context, n int) (domain.PageDescriptor, error)
	Render(ctx context.Context, desc domain.PageDescriptor) (domain.Surface, error)
	Close() error
}

// PositionStore is durable client storage for scroll offsets and progress.
type PositionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type ProgressWriter interface {
	Persist(ctx context.Context, userBookID int, progressPct int) error
}

type ProgressReader interface {
	UserProgress(ctx context.Context, documentID string) (domain.UserProgress, bool, error)
}

type Catalog interface {
	DocumentMeta(ctx context.Context, documentID string) (domain.DocumentMeta, error)
}

type EventPublisher interface {
	Publish(event domain.ProgressEvent)
}

// Viewer shows a document in a generic viewer when page rendering is unavailable.
type Viewer interface {
	Open(ctx context.Context, documentID, url string) (ViewerSession, error)
}

// ViewerSession is one open fallback viewer. Telemetry returns the newest scroll
// message, if the viewer reports any.
type ViewerSession interface {
	Telemetry(ctx context.Context) (domain.TelemetryMessage, bool, error)
	Close() error
}
