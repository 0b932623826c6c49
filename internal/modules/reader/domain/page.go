package domain

import (
	"fmt"
	"math"
)

type PageState int

const (
	PageIdle PageState = iota
	PageLoading
	PageReady
	PageFailed
)

func (s PageState) String() string {
	switch s {
	case PageIdle:
		return "idle"
	case PageLoading:
		return "loading"
	case PageReady:
		return "ready"
	case PageFailed:
		return "failed"
	default:
		return fmt.Sprintf("PageState(%d)", int(s))
	}
}

// PageDescriptor carries the geometry needed to render a page, already
// multiplied by RenderScale.
type PageDescriptor struct {
	Number int
	Width  float64
	Height float64
}

// Surface is a rendered page. Once attached to a PageEntry it is never mutated.
type Surface struct {
	Number int
	Width  float64
	Height float64
	Lines  []string
}

type PageEntry struct {
	Number  int
	Surface *Surface
	State   PageState
}

// PageBounds locates a rendered page inside the scroll container.
type PageBounds struct {
	Number int
	Top    float64
	Bottom float64
}

// RowHeight is the scroll distance covered by one terminal row.
const RowHeight = 12 * RenderScale

const pointsPerColumn = 6 * RenderScale

// Rows is the page height in terminal rows.
func (d PageDescriptor) Rows() int {
	return max(1, int(math.Ceil(d.Height/RowHeight)))
}

// Columns is the page width in terminal columns.
func (d PageDescriptor) Columns() int {
	return max(1, int(d.Width/pointsPerColumn))
}
