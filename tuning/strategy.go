package tuning

import (
	"context"
	"math"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Strategy names accepted by NewStrategy.
const (
	StrategyGP     = "gp"
	StrategyTPE    = "tpe"
	StrategyRandom = "random"
)

// SearchStrategy proposes candidates and learns from their losses.
// Propose and Report alternate: every proposed candidate is reported once.
type SearchStrategy interface {
	Propose(ctx context.Context) (Candidate, error)
	// Report records the outcome of c. A non-nil trialErr marks c failed.
	Report(c Candidate, loss float64, trialErr error) error
	// Best returns the lowest-loss successful trial, ties broken by the
	// lowest index.
	Best() (Trial, error)
}

// NewStrategy builds the named strategy over space.
func NewStrategy(name string, space *Space, seed uint64) (SearchStrategy, error) {
	switch name {
	case StrategyGP, "":
		return NewGPStrategy(space, seed), nil
	case StrategyTPE:
		return NewTPEStrategy(space, seed)
	case StrategyRandom:
		return NewRandomStrategy(space, seed), nil
	default:
		return nil, errors.NewConfigurationError("tuning.strategy", name, "must be one of gp, tpe, random")
	}
}

// history is the trial log shared by the strategies.
type history struct {
	trials []Trial
}

func (h *history) next() int {
	return len(h.trials)
}

func (h *history) record(c Candidate, loss float64, trialErr error) error {
	if c.Index != len(h.trials) {
		return errors.NewValueError("SearchStrategy.Report", "candidate reported out of order")
	}
	if trialErr == nil && (math.IsNaN(loss) || math.IsInf(loss, 0)) {
		trialErr = errors.NewNumericalInstabilityError("SearchStrategy.Report", []float64{loss}, c.Index)
	}
	h.trials = append(h.trials, Trial{Candidate: c, Loss: loss, Err: trialErr})
	return nil
}

func (h *history) best() (Trial, error) {
	best := -1
	for i, t := range h.trials {
		if t.Failed() {
			continue
		}
		if best < 0 || t.Loss < h.trials[best].Loss {
			best = i
		}
	}
	if best < 0 {
		return Trial{}, errors.ErrAllTrialsFailed
	}
	return h.trials[best], nil
}

// successes returns the successful trials in index order.
func (h *history) successes() []Trial {
	out := make([]Trial, 0, len(h.trials))
	for _, t := range h.trials {
		if !t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

// Trials returns every recorded trial in index order.
func (h *history) Trials() []Trial {
	return append([]Trial(nil), h.trials...)
}
