package reader

import (
	"sync"

	"readingroom/internal/modules/reader/domain"
)

// surface is the scroll container handed to the reading engine. The engine
// reads it from its own goroutines, so every field is guarded; the Bubble Tea
// model only writes it from Update.
type surface struct {
	mu         sync.Mutex
	bounds     []domain.PageBounds
	totalRows  int
	offsetRows int
	heightRows int
	pending    *float64
}

func newSurface() *surface {
	return &surface{}
}

// Geometry is zero until the first layout, which the engine treats as not
// measurable.
func (s *surface) Geometry() (domain.Geometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Geometry{
		ScrollTop:    float64(s.offsetRows) * domain.RowHeight,
		ScrollHeight: float64(s.totalRows) * domain.RowHeight,
		ClientHeight: float64(s.heightRows) * domain.RowHeight,
	}, nil
}

func (s *surface) PageBounds() []domain.PageBounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PageBounds, len(s.bounds))
	copy(out, s.bounds)
	return out
}

// ScrollTo is applied on the next layout pass.
func (s *surface) ScrollTo(offset float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &offset
}

func (s *surface) layout(bounds []domain.PageBounds, totalRows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = bounds
	s.totalRows = totalRows
}

func (s *surface) scrolled(offsetRows, heightRows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsetRows = offsetRows
	s.heightRows = heightRows
}

func (s *surface) takePending() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return 0, false
	}
	offset := *s.pending
	s.pending = nil
	return offset, true
}
