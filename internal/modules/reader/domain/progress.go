package domain

import (
	"fmt"
	"math"
	"time"
)

// SignificantDelta is the smallest progress change, in percentage points, that is
// worth persisting.
const SignificantDelta = 0.5

const (
	estimatePageDuration = 2 * time.Minute
	estimateHorizonPages = 8.0
	estimateCeiling      = 95.0
)

// EstimatorState names the signal the current progress value came from.
type EstimatorState int

const (
	StateUnknown EstimatorState = iota
	StateDirectMeasurement
	StateMessageRelayed
	StateTimeEstimated
)

func (s EstimatorState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateDirectMeasurement:
		return "direct"
	case StateMessageRelayed:
		return "relayed"
	case StateTimeEstimated:
		return "estimated"
	default:
		return fmt.Sprintf("EstimatorState(%d)", int(s))
	}
}

// Geometry is one reading of a scroll container.
type Geometry struct {
	ScrollTop    float64
	ScrollHeight float64
	ClientHeight float64
}

// FullyVisible reports whether the whole document fits in the viewport.
func (g Geometry) FullyVisible() bool {
	return g.ScrollHeight > 0 && g.ScrollHeight <= g.ClientHeight
}

// Scrollable reports whether the geometry yields a meaningful ratio.
func (g Geometry) Scrollable() bool {
	return g.ClientHeight > 0 && g.ScrollHeight > g.ClientHeight
}

func (g Geometry) Measurable() bool {
	return g.Scrollable() || g.FullyVisible()
}

// Percent converts the geometry to a progress value. A fully visible document is
// always at 100.
func (g Geometry) Percent() float64 {
	if g.FullyVisible() {
		return 100
	}
	if !g.Scrollable() {
		return 0
	}
	return Clamp(100 * g.ScrollTop / (g.ScrollHeight - g.ClientHeight))
}

// Sample is what a signal provider produced on one tick.
type Sample struct {
	Source   EstimatorState
	Geometry Geometry
	// Progress, when set, overrides the value derived from Geometry.
	Progress *float64
	// Estimate is only used by time estimated samples.
	Estimate float64
}

func (s Sample) Percent() float64 {
	switch {
	case s.Source == StateTimeEstimated:
		return s.Estimate
	case s.Geometry.FullyVisible():
		return 100
	case s.Progress != nil:
		return Clamp(*s.Progress)
	default:
		return s.Geometry.Percent()
	}
}

// Forced reports whether the sample pins progress to 100.
func (s Sample) Forced() bool {
	return s.Source != StateTimeEstimated && s.Geometry.FullyVisible()
}

// HasOffset reports whether the sample carries a scroll offset worth storing.
func (s Sample) HasOffset() bool {
	return s.Source == StateDirectMeasurement || s.Source == StateMessageRelayed
}

func Clamp(pct float64) float64 {
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func Significant(previous, next float64) bool {
	return math.Abs(next-previous) >= SignificantDelta
}

// RoundPercent is the integer value written to the backend.
func RoundPercent(pct float64) int {
	return int(math.Round(Clamp(pct)))
}

// TimeEstimate infers progress from engaged time: two minutes per page over an
// eight page horizon, never above 95.
func TimeEstimate(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	pages := math.Min(estimateHorizonPages, float64(elapsed)/float64(estimatePageDuration))
	return math.Min(estimateCeiling, pages/estimateHorizonPages*100)
}
