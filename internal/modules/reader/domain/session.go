package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	// EstimateWarmup is how long a session must run before elapsed time is used.
	EstimateWarmup = 5 * time.Second
	// EngagementWindow is how recent user input must be for time to count.
	EngagementWindow = 30 * time.Second
)

// ReadingSession lives for one mount of the reading view and is discarded on
// unmount. Only the stored offset and progress outlive it.
type ReadingSession struct {
	ID                 string
	DocumentID         string
	UserBookID         int
	HasUserBook        bool
	StartedAt          time.Time
	LastActivityAt     time.Time
	CurrentProgressPct float64
	// BackendProgressPct is what the backend held at mount, before any local
	// value was applied.
	BackendProgressPct float64
	LastAcceptedPct    float64
	SavedScrollOffset  *float64
	RealSampleSeen     bool
	EstimatedPct       float64
}

func NewReadingSession(id, documentID string, now time.Time) *ReadingSession {
	return &ReadingSession{ID: id, DocumentID: documentID, StartedAt: now, LastActivityAt: now}
}

func (s *ReadingSession) Touch(now time.Time) {
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
}

// Engaged reports whether elapsed time may stand in for a real measurement.
func (s *ReadingSession) Engaged(now time.Time) bool {
	return !s.RealSampleSeen &&
		now.Sub(s.StartedAt) > EstimateWarmup &&
		now.Sub(s.LastActivityAt) <= EngagementWindow
}

// SeedProgress sets the starting point for the significance check.
func (s *ReadingSession) SeedProgress(pct float64) {
	s.CurrentProgressPct = Clamp(pct)
	s.LastAcceptedPct = s.CurrentProgressPct
}

func PositionKey(documentID string) string {
	return "reading_position_" + documentID
}

func ProgressKey(documentID string) string {
	return "reading_progress_" + documentID
}

func FormatStored(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ParseStored(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}
