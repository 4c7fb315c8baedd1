package tuning

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GP defaults.
const (
	DefaultWarmUp     = 10
	DefaultCandidates = 1000
	// DefaultXi is the exploration margin of expected improvement, in units
	// of the standardised loss.
	DefaultXi = 0.01
	gpNoise   = 1e-6
)

// lengthScales are the RBF widths tried when fitting the surrogate. The one
// with the highest marginal likelihood wins.
var lengthScales = []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.2}

// GPStrategy models loss over the unit cube with a Gaussian process and
// proposes the candidate that maximises expected improvement. The first
// WarmUp proposals are uniform random.
type GPStrategy struct {
	history
	space *Space
	rng   *rand.Rand

	WarmUp     int
	Candidates int
	Xi         float64
}

// NewGPStrategy returns a seeded GP strategy with default settings.
func NewGPStrategy(space *Space, seed uint64) *GPStrategy {
	return &GPStrategy{
		space:      space,
		rng:        rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)),
		WarmUp:     DefaultWarmUp,
		Candidates: DefaultCandidates,
		Xi:         DefaultXi,
	}
}

// Propose implements SearchStrategy.
func (s *GPStrategy) Propose(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	c := Candidate{Index: s.next()}

	done := s.successes()
	if len(done) < max(s.WarmUp, 2) {
		c.Params = s.space.Sample(s.rng)
		return c, nil
	}

	gp, ok := fitGP(s.space, done)
	if !ok {
		c.Params = s.space.Sample(s.rng)
		return c, nil
	}

	best := done[0]
	for _, t := range done[1:] {
		if t.Loss < best.Loss {
			best = t
		}
	}
	incumbent := s.space.ToUnit(best.Params)

	dims := len(s.space.Dims)
	bestU := make([]float64, dims)
	bestEI := math.Inf(-1)
	u := make([]float64, dims)
	for k := 0; k < s.Candidates; k++ {
		if k%2 == 0 {
			for i := range u {
				u[i] = s.rng.Float64()
			}
		} else {
			for i := range u {
				u[i] = min(max(incumbent[i]+0.1*s.rng.NormFloat64(), 0), 1)
			}
		}
		if ei := gp.expectedImprovement(u, s.Xi); ei > bestEI {
			bestEI = ei
			copy(bestU, u)
		}
	}
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	c.Params = s.space.FromUnit(bestU)
	return c, nil
}

// Report implements SearchStrategy.
func (s *GPStrategy) Report(c Candidate, loss float64, trialErr error) error {
	return s.record(c, loss, trialErr)
}

// Best implements SearchStrategy.
func (s *GPStrategy) Best() (Trial, error) {
	return s.best()
}

// gaussianProcess is a fitted zero-mean GP on standardised losses.
type gaussianProcess struct {
	X     [][]float64
	scale float64
	chol  mat.Cholesky
	alpha *mat.VecDense
	// yBest is the lowest standardised loss.
	yBest float64
}

func rbf(a, b []float64, scale float64) float64 {
	d := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Exp(-d / (2 * scale * scale))
}

// fitGP conditions a GP on the trials and selects the length scale by
// marginal likelihood. It reports false when no kernel matrix factorises.
func fitGP(space *Space, trials []Trial) (*gaussianProcess, bool) {
	n := len(trials)
	X := make([][]float64, n)
	raw := make([]float64, n)
	for i, t := range trials {
		X[i] = space.ToUnit(t.Params)
		raw[i] = t.Loss
	}
	mean, std := stat.MeanStdDev(raw, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	y := mat.NewVecDense(n, nil)
	yBest := math.Inf(1)
	for i, v := range raw {
		z := (v - mean) / std
		y.SetVec(i, z)
		yBest = math.Min(yBest, z)
	}

	var best *gaussianProcess
	bestLL := math.Inf(-1)
	for _, scale := range lengthScales {
		K := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				k := rbf(X[i], X[j], scale)
				if i == j {
					k += gpNoise
				}
				K.SetSym(i, j, k)
			}
		}
		gp := &gaussianProcess{X: X, scale: scale, yBest: yBest}
		if ok := gp.chol.Factorize(K); !ok {
			continue
		}
		gp.alpha = mat.NewVecDense(n, nil)
		if err := gp.chol.SolveVecTo(gp.alpha, y); err != nil {
			continue
		}
		ll := -0.5*mat.Dot(y, gp.alpha) - 0.5*gp.chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
		if ll > bestLL {
			bestLL = ll
			best = gp
		}
	}
	return best, best != nil
}

// predict returns the posterior mean and variance at u.
func (gp *gaussianProcess) predict(u []float64) (float64, float64) {
	n := len(gp.X)
	k := mat.NewVecDense(n, nil)
	for i, x := range gp.X {
		k.SetVec(i, rbf(u, x, gp.scale))
	}
	mean := mat.Dot(k, gp.alpha)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, k); err != nil {
		return mean, 0
	}
	variance := 1 + gpNoise - mat.Dot(k, v)
	return mean, math.Max(variance, 0)
}

// expectedImprovement of minimisation below yBest - xi.
func (gp *gaussianProcess) expectedImprovement(u []float64, xi float64) float64 {
	mean, variance := gp.predict(u)
	sd := math.Sqrt(variance)
	improvement := gp.yBest - mean - xi
	if sd < 1e-12 {
		return math.Max(improvement, 0)
	}
	z := improvement / sd
	return improvement*distuv.UnitNormal.CDF(z) + sd*distuv.UnitNormal.Prob(z)
}
