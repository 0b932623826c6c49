package domain

import (
	"fmt"
	"strings"
	"time"
)

type DocumentKind string

const (
	DocumentKindPDF DocumentKind = "pdf"
	DocumentKindWeb DocumentKind = "web"
)

const (
	StatusReading  = "reading"
	StatusFinished = "finished"
)

const (
	ManagedProgressStart = "<!-- readingroom:progress:start -->"
	ManagedProgressEnd   = "<!-- readingroom:progress:end -->"
	SchemaVersion        = 1
)

// Document is a catalog entry. Each document is one user book on the progress
// backend, identified by UserBookID.
type Document struct {
	ID          string
	Kind        DocumentKind
	Title       string
	Authors     []string
	URL         string
	FilePath    string
	NotePath    string
	Slug        string
	Tags        []string
	UserBookID  int
	Status      string
	ProgressPct float64
	AddedAt     time.Time
	UpdatedAt   time.Time
	FinishedAt  time.Time
}

func (k DocumentKind) Validate() error {
	switch k {
	case DocumentKindPDF, DocumentKindWeb:
		return nil
	default:
		return fmt.Errorf("unsupported document kind %q", string(k))
	}
}

func (d Document) Validate() error {
	if err := d.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(d.Slug) == "" {
		return fmt.Errorf("slug is required")
	}
	if d.UserBookID <= 0 {
		return fmt.Errorf("user book id must be positive")
	}
	if d.ProgressPct < 0 || d.ProgressPct > 100 {
		return fmt.Errorf("progress %v is outside 0..100", d.ProgressPct)
	}
	return nil
}

// ApplyProgress records a persisted progress value.
func (d *Document) ApplyProgress(pct int, now time.Time) {
	d.ProgressPct = float64(min(max(pct, 0), 100))
	d.UpdatedAt = now
	if d.ProgressPct >= 100 {
		if d.Status != StatusFinished {
			d.FinishedAt = now
		}
		d.Status = StatusFinished
		return
	}
	d.Status = StatusReading
	d.FinishedAt = time.Time{}
}

// ProgressBlock is the managed note section mirroring the latest progress.
func (d Document) ProgressBlock() string {
	line := fmt.Sprintf("Progress: %.0f%% (%s)", d.ProgressPct, d.Status)
	if !d.UpdatedAt.IsZero() {
		line += ", updated " + d.UpdatedAt.Format(time.RFC3339)
	}
	return line
}

type DocumentNote struct {
	Document Document
	Body     string
}
