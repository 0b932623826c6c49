package dto

import "readingroom/internal/modules/reader/domain"

// Viewport is the scroll container the host draws pages into.
type Viewport interface {
	Geometry() (domain.Geometry, error)
	PageBounds() []domain.PageBounds
	ScrollTo(offset float64)
}

type MountInput struct {
	DocumentID string
	Viewport   Viewport
	// OnPageReady is called from a render goroutine when a page settles.
	OnPageReady func(page int, state domain.PageState)
	Settings    domain.Settings
}

type PageView struct {
	Number int
	State  domain.PageState
	Lines  []string
	Rows   int
}

type SavedPosition struct {
	DocumentID  string
	ScrollTop   float64
	Page        int
	ProgressPct float64
}

type StoredPosition struct {
	DocumentID        string
	ScrollTop         *float64
	StoredProgressPct *float64
	BackendProgress   *domain.UserProgress
}

type FinishResult struct {
	DocumentID  string
	UserBookID  int
	ProgressPct int
}

type RelayResult struct {
	Delivered bool
}

// Telemetry wire types, shared with transports that only see dto.
type (
	TelemetryMessage  = domain.TelemetryMessage
	TelemetryEnvelope = domain.TelemetryEnvelope
)

type Snapshot struct {
	SessionID      string
	DocumentID     string
	Title          string
	Byline         string
	SourceURL      string
	Mode           domain.RenderMode
	State          domain.EstimatorState
	ProgressPct    float64
	EstimatedPct   float64
	Estimated      bool
	CurrentPage    int
	PageCount      int
	AccessMisses   int
	SyncPending    bool
	LoadError      string
	SaveFailed     bool
	Settings       domain.Settings
	HasUserBook    bool
	UserBookID     int
	RestoredOffset bool
}
