package tuning

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
)

// DefaultBudget is the number of trials of a search.
const DefaultBudget = 100

// Observer receives every finished trial, successful or not.
type Observer interface {
	TrialFinished(t Trial, elapsed time.Duration)
}

// Result summarises a finished search.
type Result struct {
	Best Trial
	// Params is the best candidate merged with the space's fixed values.
	Params map[string]float64
	Trials []Trial
	Failed int
}

// Tuner runs a sequential search of Budget trials.
type Tuner struct {
	Strategy  SearchStrategy
	Space     *Space
	Budget    int
	Objective Objective
	Logger    log.Logger
	Observer  Observer
}

// Run proposes, evaluates and reports Budget candidates in order. A trial
// that returns an error or panics is logged as a TrialFailure and excluded
// from the best candidate. Run fails when every trial fails, when the
// strategy fails, or when ctx is cancelled.
func (t *Tuner) Run(ctx context.Context) (*Result, error) {
	logger := log.OrDefault(t.Logger, "tuning")
	budget := t.Budget
	if budget == 0 {
		budget = DefaultBudget
	}
	if budget < 0 {
		return nil, errors.NewConfigurationError("tuning.budget", budget, "must be positive")
	}
	if t.Strategy == nil || t.Objective == nil || t.Space == nil {
		return nil, errors.NewConfigurationError("tuning", nil, "strategy, space and objective are required")
	}

	logger.Info("Search started", log.BudgetKey, budget, log.OperationKey, log.OperationTune)

	result := &Result{Trials: make([]Trial, 0, budget)}
	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "search stopped after %d trials", i)
		}
		c, err := t.Strategy.Propose(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "propose trial %d", i)
		}

		start := time.Now()
		loss, trialErr := t.evaluate(ctx, c)
		elapsed := time.Since(start)
		if trialErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// the strategy still holds c; settle it before leaving
				_ = t.Strategy.Report(c, loss, errors.NewTrialFailure(c.Index, c.Params, ctxErr))
				return nil, errors.Wrapf(ctxErr, "search stopped during trial %d", i)
			}
			trialErr = errors.NewTrialFailure(c.Index, c.Params, trialErr)
		}
		if err := t.Strategy.Report(c, loss, trialErr); err != nil {
			return nil, errors.Wrapf(err, "report trial %d", i)
		}

		trial := Trial{Candidate: c, Loss: loss, Err: trialErr}
		result.Trials = append(result.Trials, trial)
		if trialErr != nil {
			result.Failed++
			logger.Warn("Trial failed",
				log.TrialKey, c.Index,
				log.HyperParamsKey, formatParams(c.Params),
				log.ErrorCodeKey, log.ErrorTrialFailed,
				"error", trialErr.Error(),
			)
		} else {
			logger.Debug("Trial finished",
				log.TrialKey, c.Index,
				log.LossKey, loss,
				log.HyperParamsKey, formatParams(c.Params),
				log.DurationMsKey, elapsed.Milliseconds(),
			)
		}
		if t.Observer != nil {
			t.Observer.TrialFinished(trial, elapsed)
		}
	}

	best, err := t.Strategy.Best()
	if err != nil {
		return nil, errors.Wrapf(err, "%d of %d trials failed", result.Failed, budget)
	}
	result.Best = best
	result.Params = t.Space.WithFixed(best.Params)

	logger.Info("Search finished",
		log.TrialKey, best.Index,
		log.LossKey, best.Loss,
		log.HyperParamsKey, formatParams(best.Params),
		"failed_trials", result.Failed,
	)
	return result, nil
}

// evaluate scores c with the space's fixed values applied, so every trial
// fits the same model shape as the final fit.
func (t *Tuner) evaluate(ctx context.Context, c Candidate) (loss float64, err error) {
	params := t.Space.WithFixed(c.Params)
	err = errors.SafeExecute(fmt.Sprintf("trial %d", c.Index), func() error {
		var evalErr error
		loss, evalErr = t.Objective.Evaluate(ctx, params)
		return evalErr
	})
	if err == nil && (math.IsNaN(loss) || math.IsInf(loss, 0)) {
		err = errors.NewNumericalInstabilityError("Objective.Evaluate", []float64{loss}, c.Index)
	}
	return loss, err
}

func formatParams(params map[string]float64) string {
	var b strings.Builder
	for i, k := range sortedKeys(params) {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%g", k, params[k])
	}
	return b.String()
}
