package domain

import "strings"

// RenderScale is the fixed scale factor applied to page geometry.
const RenderScale = 1.5

// Document is immutable once loaded. PageCount stays 0 until the source resolves.
type Document struct {
	ID        string
	PageCount int
	SourceURL string
}

// DocumentMeta is what the catalog knows about a document.
type DocumentMeta struct {
	ID          string
	Title       string
	SourceURL   string
	AuthorNames []string
}

func (m DocumentMeta) Byline() string {
	return strings.Join(m.AuthorNames, ", ")
}

// UserProgress is the backend's view of a reader's progress on a document.
type UserProgress struct {
	UserBookID  int
	ProgressPct float64
}

// ProgressEvent is announced after a progress value has been persisted.
type ProgressEvent struct {
	DocumentID  string
	ProgressPct float64
}

type RenderMode string

const (
	ModePrimary  RenderMode = "primary"
	ModeFallback RenderMode = "fallback"
)

// Settings change layout of the reading view, never progress logic.
type Settings struct {
	Theme     string
	WrapWidth int
}
