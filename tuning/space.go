// Package tuning searches gradient-boosted-tree hyperparameters by
// sequential model-based optimisation.
//
// A Tuner asks a SearchStrategy for candidates one at a time, evaluates each
// with an Objective and reports the loss back. Strategies are pluggable:
// GPStrategy (Gaussian-process expected improvement, the default),
// TPEStrategy (goptuna's tree-structured Parzen estimator) and
// RandomStrategy.
package tuning

import (
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/sklearn/boosting"
)

// Kind is the value type of a Dimension.
type Kind int

const (
	// Float dimensions take any value in [Low, High].
	Float Kind = iota
	// Int dimensions take integer values in [Low, High].
	Int
)

func (k Kind) String() string {
	if k == Int {
		return "int"
	}
	return "float"
}

// Bounds is a closed numeric interval.
type Bounds[T constraints.Integer | constraints.Float] struct {
	Low  T
	High T
}

// Valid reports whether Low < High and neither bound is NaN.
func (b Bounds[T]) Valid() bool {
	// NaN compares false with everything, including itself.
	return b.Low == b.Low && b.High == b.High && b.Low < b.High
}

// Clamp limits v to the interval.
func (b Bounds[T]) Clamp(v T) T {
	return min(max(v, b.Low), b.High)
}

// Contains reports whether v lies in the interval.
func (b Bounds[T]) Contains(v T) bool {
	return v >= b.Low && v <= b.High
}

// Dimension is one searched hyperparameter.
type Dimension struct {
	Name string
	Kind Kind
	Bounds[float64]
}

// IntDimension returns an integer dimension.
func IntDimension[T constraints.Integer](name string, low, high T) Dimension {
	return Dimension{Name: name, Kind: Int, Bounds: Bounds[float64]{float64(low), float64(high)}}
}

// FloatDimension returns a continuous dimension.
func FloatDimension[T constraints.Float](name string, low, high T) Dimension {
	return Dimension{Name: name, Kind: Float, Bounds: Bounds[float64]{float64(low), float64(high)}}
}

// value maps u in [0, 1] onto the dimension.
func (d Dimension) value(u float64) float64 {
	v := d.Low + u*(d.High-d.Low)
	if d.Kind == Int {
		v = math.Round(v)
	}
	return d.Clamp(v)
}

// unit maps v onto [0, 1].
func (d Dimension) unit(v float64) float64 {
	return (d.Clamp(v) - d.Low) / (d.High - d.Low)
}

// Space is an ordered set of dimensions plus fixed, non-searched values.
type Space struct {
	Dims  []Dimension
	Fixed map[string]float64
}

// NewSpace validates dims and returns a space. Bad bounds and duplicate
// names are ConfigurationErrors.
func NewSpace(dims []Dimension, fixed map[string]float64) (*Space, error) {
	if len(dims) == 0 {
		return nil, errors.NewConfigurationError("tuning.space", len(dims), "needs at least one dimension")
	}
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if !d.Valid() || math.IsInf(d.Low, 0) || math.IsInf(d.High, 0) {
			return nil, errors.NewConfigurationError("tuning.space."+d.Name,
				[2]float64{d.Low, d.High}, "bounds must be finite with low < high")
		}
		if seen[d.Name] {
			return nil, errors.NewConfigurationError("tuning.space."+d.Name, d.Name, "duplicate dimension")
		}
		if _, ok := fixed[d.Name]; ok {
			return nil, errors.NewConfigurationError("tuning.space."+d.Name, d.Name, "dimension is also fixed")
		}
		seen[d.Name] = true
	}
	fixedCopy := make(map[string]float64, len(fixed))
	for k, v := range fixed {
		fixedCopy[k] = v
	}
	return &Space{Dims: append([]Dimension(nil), dims...), Fixed: fixedCopy}, nil
}

// DefaultSpace is the gradient-boosted-tree search space: tree depth,
// minimum split loss, L1 and L2 penalties, column fraction and minimum
// child weight, with 180 trees and seed 0 held fixed.
func DefaultSpace() *Space {
	s, err := NewSpace([]Dimension{
		IntDimension(boosting.ParamMaxDepth, 3, 18),
		FloatDimension(boosting.ParamGamma, 0.0, 5.0),
		FloatDimension(boosting.ParamRegAlpha, 0.0, 1.0),
		FloatDimension(boosting.ParamRegLambda, 0.0, 1.0),
		FloatDimension(boosting.ParamColsampleBytree, 0.5, 1.0),
		IntDimension(boosting.ParamMinChildWeight, 0, 10),
	}, map[string]float64{
		boosting.ParamNEstimators: 180,
		boosting.ParamRandomState: 0,
	})
	if err != nil {
		panic(err)
	}
	return s
}

// Candidate is a proposed point of a Space.
type Candidate struct {
	// Index is the trial number, starting at 0.
	Index  int
	Params map[string]float64
}

// Trial is an evaluated candidate. Err is non-nil for a failed trial.
type Trial struct {
	Candidate
	Loss float64
	Err  error
}

// Failed reports whether the trial produced no usable loss.
func (t Trial) Failed() bool {
	return t.Err != nil
}

// FromUnit turns a point of the unit cube into searched values.
func (s *Space) FromUnit(u []float64) map[string]float64 {
	out := make(map[string]float64, len(s.Dims))
	for i, d := range s.Dims {
		out[d.Name] = d.value(u[i])
	}
	return out
}

// ToUnit maps the searched values of params onto the unit cube.
func (s *Space) ToUnit(params map[string]float64) []float64 {
	out := make([]float64, len(s.Dims))
	for i, d := range s.Dims {
		out[i] = d.unit(params[d.Name])
	}
	return out
}

// Sample draws a uniform point of the space.
func (s *Space) Sample(r *rand.Rand) map[string]float64 {
	u := make([]float64, len(s.Dims))
	for i := range u {
		u[i] = r.Float64()
	}
	return s.FromUnit(u)
}

// WithFixed returns params merged with the fixed values.
func (s *Space) WithFixed(params map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(params)+len(s.Fixed))
	for k, v := range s.Fixed {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Names returns the searched dimension names in order.
func (s *Space) Names() []string {
	names := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		names[i] = d.Name
	}
	return names
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
