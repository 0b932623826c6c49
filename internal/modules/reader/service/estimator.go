package service

import (
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"readingroom/internal/modules/reader/domain"
)

// Decision is the outcome of one estimator tick.
type Decision struct {
	Sample  domain.Sample
	Percent float64
	// Accepted samples moved progress by a significant amount; their offset and
	// progress are stored and the backend write is scheduled.
	Accepted  bool
	Estimated bool
}

// Estimator fuses ranked signal providers into the session's progress. It does
// no I/O; the caller acts on the returned Decision.
type Estimator struct {
	session      *domain.ReadingSession
	providers    []SignalProvider
	state        domain.EstimatorState
	accessMisses int
	missLog      rate.Sometimes
	logger       hclog.Logger
}

func NewEstimator(session *domain.ReadingSession, logger hclog.Logger, providers ...SignalProvider) *Estimator {
	return &Estimator{
		session:   session,
		providers: providers,
		state:     domain.StateUnknown,
		missLog:   rate.Sometimes{First: 3, Interval: 30 * time.Second},
		logger:    logger,
	}
}

// Tick tries each provider in order and applies the first sample produced.
func (e *Estimator) Tick(now time.Time) (Decision, bool) {
	for _, p := range e.providers {
		sample, ok, err := p.TrySample(now)
		if err != nil {
			e.miss(p.Name(), err)
			continue
		}
		if !ok {
			continue
		}
		return e.apply(sample), true
	}
	return Decision{}, false
}

func (e *Estimator) apply(sample domain.Sample) Decision {
	if sample.Source == domain.StateTimeEstimated {
		e.state = domain.StateTimeEstimated
		e.session.EstimatedPct = max(e.session.EstimatedPct, sample.Estimate)
		e.logger.Debug("time estimate", "document", e.session.DocumentID, "estimate", e.session.EstimatedPct)
		return Decision{Sample: sample, Percent: e.session.EstimatedPct, Estimated: true}
	}

	e.state = sample.Source
	e.session.RealSampleSeen = true
	pct := sample.Percent()
	accepted := domain.Significant(e.session.LastAcceptedPct, pct) ||
		(sample.Forced() && e.session.CurrentProgressPct != 100)
	if !accepted {
		return Decision{Sample: sample, Percent: pct}
	}
	e.session.CurrentProgressPct = pct
	e.session.LastAcceptedPct = pct
	return Decision{Sample: sample, Percent: pct, Accepted: true}
}

// Override sets progress from an explicit user action.
func (e *Estimator) Override(pct float64) {
	e.session.CurrentProgressPct = domain.Clamp(pct)
	e.session.LastAcceptedPct = e.session.CurrentProgressPct
}

func (e *Estimator) State() domain.EstimatorState {
	return e.state
}

func (e *Estimator) AccessMisses() int {
	return e.accessMisses
}

func (e *Estimator) miss(provider string, err error) {
	if domain.IsAccessError(err) {
		e.accessMisses++
		misses := e.accessMisses
		e.missLog.Do(func() {
			e.logger.Debug("surface geometry not readable", "provider", provider, "misses", misses)
		})
		return
	}
	e.logger.Debug("signal provider miss", "provider", provider, "error", err)
}
