package tuning

import (
	"context"
	"math/rand/v2"
)

// RandomStrategy samples candidates uniformly from the space.
type RandomStrategy struct {
	history
	space *Space
	rng   *rand.Rand
}

// NewRandomStrategy returns a seeded uniform sampler.
func NewRandomStrategy(space *Space, seed uint64) *RandomStrategy {
	return &RandomStrategy{space: space, rng: rand.New(rand.NewPCG(seed, 0xda3e39cb94b95bdb))}
}

// Propose implements SearchStrategy.
func (s *RandomStrategy) Propose(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	return Candidate{Index: s.next(), Params: s.space.Sample(s.rng)}, nil
}

// Report implements SearchStrategy.
func (s *RandomStrategy) Report(c Candidate, loss float64, trialErr error) error {
	return s.record(c, loss, trialErr)
}

// Best implements SearchStrategy.
func (s *RandomStrategy) Best() (Trial, error) {
	return s.best()
}
