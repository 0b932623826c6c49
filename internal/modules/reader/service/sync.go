package service

import (
	"context"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
	"readingroom/internal/platform/clock"
)

const DefaultSyncDelay = 1000 * time.Millisecond

type SyncConfig struct {
	DocumentID string
	UserBookID int
	// PersistedPct is the value the backend already holds.
	PersistedPct float64
	Delay        time.Duration
	Writer       readerout.ProgressWriter
	Publisher    readerout.EventPublisher
	Clock        clock.Clock
	Logger       hclog.Logger
}

// ProgressSync writes progress to the backend. Scheduled writes are debounced so
// only the last value in a burst is persisted; there is at most one pending timer.
type ProgressSync struct {
	cfg SyncConfig

	mu            sync.Mutex
	timer         clock.Timer
	generation    uint64
	closed        bool
	lastPersisted float64

	// writeMu keeps at most one write in flight.
	writeMu sync.Mutex
}

func NewProgressSync(cfg SyncConfig) *ProgressSync {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultSyncDelay
	}
	return &ProgressSync{cfg: cfg, lastPersisted: domain.Clamp(cfg.PersistedPct)}
}

// Schedule replaces any pending write with one for pct after the delay.
func (s *ProgressSync) Schedule(pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopLocked()
	s.generation++
	generation := s.generation
	s.timer = s.cfg.Clock.AfterFunc(s.cfg.Delay, func() {
		s.fire(generation, pct)
	})
}

// Flush cancels any pending write and persists pct now.
func (s *ProgressSync) Flush(ctx context.Context, pct float64) error {
	s.mu.Lock()
	s.stopLocked()
	s.generation++
	s.mu.Unlock()
	return s.write(ctx, pct, true)
}

// Close cancels the pending write. Later Schedule calls are ignored.
func (s *ProgressSync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.closed = true
}

func (s *ProgressSync) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *ProgressSync) fire(generation uint64, pct float64) {
	s.mu.Lock()
	if s.closed || generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()
	_ = s.write(context.Background(), pct, false)
}

func (s *ProgressSync) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *ProgressSync) write(ctx context.Context, pct float64, force bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	last := s.lastPersisted
	s.mu.Unlock()
	if !force && !domain.Significant(last, pct) {
		s.cfg.Logger.Debug("progress write skipped", "document", s.cfg.DocumentID, "pct", pct, "persisted", last)
		return nil
	}

	rounded := domain.RoundPercent(pct)
	if err := s.cfg.Writer.Persist(ctx, s.cfg.UserBookID, rounded); err != nil {
		syncErr := &domain.SyncError{UserBookID: s.cfg.UserBookID, Err: err}
		s.cfg.Logger.Warn("progress write failed", "document", s.cfg.DocumentID, "error", syncErr)
		return syncErr
	}

	s.mu.Lock()
	s.lastPersisted = pct
	s.mu.Unlock()
	s.cfg.Logger.Info("progress persisted", "document", s.cfg.DocumentID, "user_book", s.cfg.UserBookID, "pct", rounded)
	if s.cfg.Publisher != nil {
		s.cfg.Publisher.Publish(domain.ProgressEvent{DocumentID: s.cfg.DocumentID, ProgressPct: float64(rounded)})
	}
	return nil
}
