// Package boosting implements gradient-boosted regression trees with
// second-order split gain, L1/L2 leaf regularisation, a minimum split loss
// and histogram-binned features.
package boosting

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/sklearn/tree"
)

// Hyperparameter names accepted by Params.Set.
const (
	ParamNEstimators     = "n_estimators"
	ParamMaxDepth        = "max_depth"
	ParamLearningRate    = "learning_rate"
	ParamGamma           = "gamma"
	ParamRegAlpha        = "reg_alpha"
	ParamRegLambda       = "reg_lambda"
	ParamColsampleBytree = "colsample_bytree"
	ParamMinChildWeight  = "min_child_weight"
	ParamRandomState     = "random_state"
	ParamMaxBin          = "max_bin"
)

// Params are the boosting hyperparameters.
type Params struct {
	NEstimators int
	// MaxDepth limits every tree. 0 means unlimited.
	MaxDepth     int
	LearningRate float64
	// Gamma is the minimum loss reduction required to split.
	Gamma     float64
	RegAlpha  float64
	RegLambda float64
	// ColsampleBytree is the fraction of features drawn for each tree.
	ColsampleBytree float64
	// MinChildWeight is the minimum hessian sum of each child.
	MinChildWeight float64
	RandomState    uint64
	MaxBin         int
}

// DefaultParams returns the library defaults of xgboost's hist method.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MaxDepth:        6,
		LearningRate:    0.3,
		RegLambda:       1,
		ColsampleBytree: 1,
		MinChildWeight:  1,
		MaxBin:          DefaultMaxBin,
	}
}

// Set assigns one hyperparameter by name. Integer parameters are rounded.
func (p *Params) Set(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.NewConfigurationError(name, value, "must be finite")
	}
	switch name {
	case ParamNEstimators:
		p.NEstimators = int(math.Round(value))
	case ParamMaxDepth:
		p.MaxDepth = int(math.Round(value))
	case ParamLearningRate:
		p.LearningRate = value
	case ParamGamma:
		p.Gamma = value
	case ParamRegAlpha:
		p.RegAlpha = value
	case ParamRegLambda:
		p.RegLambda = value
	case ParamColsampleBytree:
		p.ColsampleBytree = value
	case ParamMinChildWeight:
		p.MinChildWeight = value
	case ParamRandomState:
		if value < 0 {
			return errors.NewConfigurationError(name, value, "must be non-negative")
		}
		p.RandomState = uint64(value)
	case ParamMaxBin:
		p.MaxBin = int(math.Round(value))
	default:
		return errors.NewConfigurationError(name, value, "unknown hyperparameter")
	}
	return nil
}

// SetAll assigns every entry of values, in name order.
func (p *Params) SetAll(values map[string]float64) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.Set(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks hyperparameter ranges.
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError(ParamNEstimators, "must be >= 1", p.NEstimators)
	case p.MaxDepth < 0:
		return errors.NewValidationError(ParamMaxDepth, "must be >= 0", p.MaxDepth)
	case !(p.LearningRate > 0):
		return errors.NewValidationError(ParamLearningRate, "must be > 0", p.LearningRate)
	case p.Gamma < 0:
		return errors.NewValidationError(ParamGamma, "must be >= 0", p.Gamma)
	case p.RegAlpha < 0:
		return errors.NewValidationError(ParamRegAlpha, "must be >= 0", p.RegAlpha)
	case p.RegLambda < 0:
		return errors.NewValidationError(ParamRegLambda, "must be >= 0", p.RegLambda)
	case !(p.ColsampleBytree > 0 && p.ColsampleBytree <= 1):
		return errors.NewValidationError(ParamColsampleBytree, "must be in (0, 1]", p.ColsampleBytree)
	case p.MinChildWeight < 0:
		return errors.NewValidationError(ParamMinChildWeight, "must be >= 0", p.MinChildWeight)
	case p.MaxBin < 2 || p.MaxBin > math.MaxUint16:
		return errors.NewValidationError(ParamMaxBin, "must be in [2, 65535]", p.MaxBin)
	}
	return nil
}

// Map returns the hyperparameters keyed by name.
func (p Params) Map() map[string]interface{} {
	return map[string]interface{}{
		ParamNEstimators:     p.NEstimators,
		ParamMaxDepth:        p.MaxDepth,
		ParamLearningRate:    p.LearningRate,
		ParamGamma:           p.Gamma,
		ParamRegAlpha:        p.RegAlpha,
		ParamRegLambda:       p.RegLambda,
		ParamColsampleBytree: p.ColsampleBytree,
		ParamMinChildWeight:  p.MinChildWeight,
		ParamRandomState:     p.RandomState,
		ParamMaxBin:          p.MaxBin,
	}
}

// Option configures a GradientBoostingRegressor.
type Option func(*Params)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option { return func(p *Params) { p.NEstimators = n } }

// WithMaxDepth sets the tree depth limit.
func WithMaxDepth(depth int) Option { return func(p *Params) { p.MaxDepth = depth } }

// WithLearningRate sets the shrinkage applied to every leaf.
func WithLearningRate(lr float64) Option { return func(p *Params) { p.LearningRate = lr } }

// WithGamma sets the minimum split loss.
func WithGamma(gamma float64) Option { return func(p *Params) { p.Gamma = gamma } }

// WithRegAlpha sets the L1 leaf penalty.
func WithRegAlpha(alpha float64) Option { return func(p *Params) { p.RegAlpha = alpha } }

// WithRegLambda sets the L2 leaf penalty.
func WithRegLambda(lambda float64) Option { return func(p *Params) { p.RegLambda = lambda } }

// WithColsampleBytree sets the per-tree feature fraction.
func WithColsampleBytree(fraction float64) Option {
	return func(p *Params) { p.ColsampleBytree = fraction }
}

// WithMinChildWeight sets the minimum hessian sum per child.
func WithMinChildWeight(w float64) Option { return func(p *Params) { p.MinChildWeight = w } }

// WithRandomState sets the column sampling seed.
func WithRandomState(seed uint64) Option { return func(p *Params) { p.RandomState = seed } }

// WithParams replaces every hyperparameter.
func WithParams(params Params) Option { return func(p *Params) { *p = params } }

// GradientBoostingRegressor fits an additive model of regression trees to
// the squared error. Each round fits a tree to the gradients of the cached
// predictions.
type GradientBoostingRegressor struct {
	model.BaseEstimator
	Params

	BaseScore float64
	Trees     []tree.Tree
	NFeatures int
}

// NewGradientBoostingRegressor creates a regressor with DefaultParams
// modified by opts.
func NewGradientBoostingRegressor(opts ...Option) *GradientBoostingRegressor {
	params := DefaultParams()
	for _, opt := range opts {
		opt(&params)
	}
	return &GradientBoostingRegressor{Params: params}
}

// Fit trains NEstimators trees on X and y.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if err := g.Validate(); err != nil {
		return err
	}
	labels, err := metrics.Values(y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("GradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(labels) != rows {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", rows, len(labels), 0)
	}
	if err := errors.CheckNumericalStability("GradientBoostingRegressor.Fit", labels, 0); err != nil {
		return err
	}

	dense := mat.DenseCopyOf(X)
	binner := newBinner(dense, g.MaxBin)
	b := &builder{
		params: g.Params,
		bins:   binner.quantize(dense),
		binner: binner,
		grad:   make([]float64, rows),
		hess:   make([]float64, rows),
		pred:   make([]float64, rows),
	}

	base := 0.0
	for _, v := range labels {
		base += v
	}
	base /= float64(rows)
	for i := range b.pred {
		b.pred[i] = base
	}

	r := rand.New(rand.NewPCG(g.RandomState, 0x853c49e6748fea9b))
	all := make([]int, rows)
	trees := make([]tree.Tree, 0, g.NEstimators)
	for round := 0; round < g.NEstimators; round++ {
		for i, v := range labels {
			b.grad[i] = b.pred[i] - v
			b.hess[i] = 1
		}
		b.features = sampleColumns(r, cols, g.ColsampleBytree)
		b.tree = tree.Tree{}
		for i := range all {
			all[i] = i
		}
		b.grow(all, 0)
		trees = append(trees, b.tree)
	}
	if err := errors.CheckNumericalStability("GradientBoostingRegressor.Fit", b.pred, g.NEstimators); err != nil {
		return err
	}

	g.BaseScore = base
	g.Trees = trees
	g.NFeatures = cols
	g.SetFitted()

	log.GetLoggerWithName("boosting").Debug("Boosting fitted",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", g.NEstimators,
		"max_depth", g.MaxDepth,
	)
	return nil
}

// sampleColumns draws max(1, floor(fraction*n)) feature indices without
// replacement, sorted ascending.
func sampleColumns(r *rand.Rand, n int, fraction float64) []int {
	k := int(fraction * float64(n))
	if k < 1 {
		k = 1
	}
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := r.Perm(n)[:k]
	sort.Ints(out)
	return out
}

// Predict returns BaseScore plus the sum of the leaf values of every tree.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !g.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("GradientBoostingRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != g.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", g.NFeatures, cols, 1)
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := g.BaseScore
		for k := range g.Trees {
			sum += g.Trees[k].PredictAt(X, i)
		}
		out.Set(i, 0, sum)
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return g.Params.Map()
}

// Name implements model.Regressor.
func (g *GradientBoostingRegressor) Name() string { return "GradientBoostingRegressor" }

// Clone returns an unfitted regressor with the same hyperparameters.
func (g *GradientBoostingRegressor) Clone() model.Regressor {
	return &GradientBoostingRegressor{Params: g.Params}
}

// FeatureImportances returns the total split gain per feature normalised
// to sum to one.
func (g *GradientBoostingRegressor) FeatureImportances() []float64 {
	out := make([]float64, g.NFeatures)
	for k := range g.Trees {
		g.Trees[k].AccumulateImportances(out)
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

var _ model.Regressor = (*GradientBoostingRegressor)(nil)
