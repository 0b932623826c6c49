package service

import (
	"time"

	"readingroom/internal/modules/reader/domain"
)

// SignalProvider is one way of obtaining a scroll sample. TrySample reports false
// when it has nothing this tick; an error is a miss and the next provider is tried.
type SignalProvider interface {
	Name() string
	TrySample(now time.Time) (domain.Sample, bool, error)
}

// GeometrySource is a surface whose scroll geometry may or may not be readable.
type GeometrySource interface {
	Geometry() (domain.Geometry, error)
}

// DirectProvider reads the geometry of the rendering surface itself.
type DirectProvider struct {
	Surface GeometrySource
}

func (DirectProvider) Name() string { return "direct" }

func (p DirectProvider) TrySample(time.Time) (domain.Sample, bool, error) {
	g, err := p.Surface.Geometry()
	if err != nil {
		return domain.Sample{}, false, err
	}
	if !g.Measurable() {
		return domain.Sample{}, false, nil
	}
	return domain.Sample{Source: domain.StateDirectMeasurement, Geometry: g}, true, nil
}

// RelayProvider consumes telemetry posted by an isolated surface.
type RelayProvider struct {
	Mailbox *Mailbox
}

func (RelayProvider) Name() string { return "relay" }

func (p RelayProvider) TrySample(time.Time) (domain.Sample, bool, error) {
	msg, ok := p.Mailbox.Take()
	if !ok {
		return domain.Sample{}, false, nil
	}
	if err := msg.Validate(); err != nil {
		return domain.Sample{}, false, err
	}
	return msg.Sample(), true, nil
}

// TimeProvider infers progress from engaged time while no real sample exists.
// Its value never decreases within a session.
type TimeProvider struct {
	Session *domain.ReadingSession
	last    float64
}

func (*TimeProvider) Name() string { return "time" }

func (p *TimeProvider) TrySample(now time.Time) (domain.Sample, bool, error) {
	if !p.Session.Engaged(now) {
		return domain.Sample{}, false, nil
	}
	p.last = max(p.last, domain.TimeEstimate(now.Sub(p.Session.StartedAt)))
	return domain.Sample{Source: domain.StateTimeEstimated, Estimate: p.last}, true, nil
}
