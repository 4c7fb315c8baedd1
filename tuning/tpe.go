package tuning

import (
	"context"
	"math/rand"
	"sync"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"

	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
)

type tpeResult struct {
	loss float64
	err  error
}

// TPEStrategy proposes candidates with goptuna's tree-structured Parzen
// estimator. goptuna drives its objective itself, so every proposal runs a
// one-trial Optimize in a goroutine whose objective hands the suggested
// parameters to Propose and blocks until Report returns the loss.
//
// Sampling is deterministic for a seed: goptuna's own samplers are seeded
// at construction and the global source is reseeded per round.
type TPEStrategy struct {
	history
	space *Space
	study *goptuna.Study
	seed  int64
	round int64

	proposals chan map[string]float64
	results   chan tpeResult
	done      chan error
	pending   bool
}

// NewTPEStrategy creates an in-memory goptuna study minimising the loss.
func NewTPEStrategy(space *Space, seed uint64) (*TPEStrategy, error) {
	study, err := goptuna.CreateStudy(
		"findhome-tpe",
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(int64(seed)))),
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionLogger(log.GetLoggerWithName("goptuna")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "tpe: create study")
	}
	return &TPEStrategy{
		space:     space,
		study:     study,
		seed:      int64(seed),
		proposals: make(chan map[string]float64),
		results:   make(chan tpeResult),
		done:      make(chan error, 1),
	}, nil
}

// globalRandMu serialises reseeding of the global math/rand source, which
// goptuna's Parzen mixture draws its component index from.
var globalRandMu sync.Mutex

func (s *TPEStrategy) objective(round int64) goptuna.FuncObjective {
	return func(trial goptuna.Trial) (float64, error) {
		params, err := s.suggest(trial, round)
		if err != nil {
			return 0, err
		}
		s.proposals <- params
		r := <-s.results
		return r.loss, r.err
	}
}

func (s *TPEStrategy) suggest(trial goptuna.Trial, round int64) (map[string]float64, error) {
	globalRandMu.Lock()
	defer globalRandMu.Unlock()
	rand.Seed(s.seed + round) // nolint:staticcheck // goptuna offers no seed for this source

	params := make(map[string]float64, len(s.space.Dims))
	for _, d := range s.space.Dims {
		switch d.Kind {
		case Int:
			v, err := trial.SuggestInt(d.Name, int(d.Low), int(d.High))
			if err != nil {
				return nil, err
			}
			params[d.Name] = float64(v)
		default:
			v, err := trial.SuggestFloat(d.Name, d.Low, d.High)
			if err != nil {
				return nil, err
			}
			params[d.Name] = v
		}
	}
	return params, nil
}

// Propose implements SearchStrategy.
func (s *TPEStrategy) Propose(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	if s.pending {
		return Candidate{}, errors.NewValueError("TPEStrategy.Propose", "previous candidate not reported")
	}
	objective := s.objective(s.round)
	s.round++
	go func() {
		s.done <- s.study.Optimize(objective, 1)
	}()
	select {
	case params := <-s.proposals:
		s.pending = true
		return Candidate{Index: s.next(), Params: params}, nil
	case err := <-s.done:
		if err == nil {
			err = errors.New("study finished without a trial")
		}
		return Candidate{}, errors.Wrap(err, "tpe: propose")
	}
}

// Report implements SearchStrategy.
func (s *TPEStrategy) Report(c Candidate, loss float64, trialErr error) error {
	if !s.pending {
		return errors.NewValueError("TPEStrategy.Report", "no candidate pending")
	}
	if err := s.record(c, loss, trialErr); err != nil {
		s.results <- tpeResult{err: err}
		<-s.done
		s.pending = false
		return err
	}
	recorded := s.trials[len(s.trials)-1]
	s.results <- tpeResult{loss: recorded.Loss, err: recorded.Err}
	s.pending = false

	// goptuna may surface the objective's own error; only study failures matter.
	if err := <-s.done; err != nil && recorded.Err == nil {
		return errors.Wrap(err, "tpe: report")
	}
	return nil
}

// Best implements SearchStrategy.
func (s *TPEStrategy) Best() (Trial, error) {
	return s.best()
}
