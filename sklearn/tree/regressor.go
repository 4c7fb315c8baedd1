package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Splitter strategies.
const (
	SplitterBest   = "best"
	SplitterRandom = "random"
)

// minGain is the smallest squared-error reduction accepted as a split.
const minGain = 1e-12

// DecisionTreeRegressor is a CART regression tree grown by minimising the
// squared error of the node means.
//
// Hyperparameters are exported so that a fitted tree round-trips through gob.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	// MaxDepth limits the depth of the tree. 0 grows until leaves are pure.
	MaxDepth int
	// MinSamplesSplit is the minimum number of samples an internal node needs.
	MinSamplesSplit int
	// MinSamplesLeaf is the minimum number of samples in each child.
	MinSamplesLeaf int
	// MaxFeatures is the fraction of features examined at each split, in (0, 1].
	MaxFeatures float64
	// Splitter is SplitterBest (exhaustive thresholds) or SplitterRandom
	// (one uniform threshold per feature, as in extremely randomized trees).
	Splitter string
	// RandomState seeds feature sampling and random thresholds.
	RandomState uint64

	Tree               Tree
	NFeatures          int
	FeatureImportances []float64
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(d *DecisionTreeRegressor) { d.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(d *DecisionTreeRegressor) { d.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(d *DecisionTreeRegressor) { d.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the fraction of features examined per split.
func WithMaxFeatures(fraction float64) Option {
	return func(d *DecisionTreeRegressor) { d.MaxFeatures = fraction }
}

// WithSplitter selects SplitterBest or SplitterRandom.
func WithSplitter(splitter string) Option {
	return func(d *DecisionTreeRegressor) { d.Splitter = splitter }
}

// WithRandomState sets the seed.
func WithRandomState(seed uint64) Option {
	return func(d *DecisionTreeRegressor) { d.RandomState = seed }
}

// NewDecisionTreeRegressor creates a tree with scikit-learn defaults:
// unlimited depth, min_samples_split=2, min_samples_leaf=1, all features.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	d := &DecisionTreeRegressor{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     1.0,
		Splitter:        SplitterBest,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DecisionTreeRegressor) validateParams() error {
	switch {
	case d.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", d.MaxDepth)
	case d.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", d.MinSamplesSplit)
	case d.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", d.MinSamplesLeaf)
	case !(d.MaxFeatures > 0 && d.MaxFeatures <= 1):
		return errors.NewValidationError("max_features", "must be in (0, 1]", d.MaxFeatures)
	case d.Splitter != SplitterBest && d.Splitter != SplitterRandom:
		return errors.NewValidationError("splitter", "must be best or random", d.Splitter)
	}
	return nil
}

// Fit grows the tree on all rows of X.
func (d *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	labels, err := metrics.Values(y)
	if err != nil {
		return err
	}
	rows, _ := X.Dims()
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	return d.FitIndices(X, labels, indices)
}

// FitIndices grows the tree on the rows of X listed in indices. Indices may
// repeat, which is how bootstrap samples are passed in.
func (d *DecisionTreeRegressor) FitIndices(X mat.Matrix, y []float64, indices []int) error {
	if err := d.validateParams(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 || len(indices) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != rows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, len(y), 0)
	}
	if err := errors.CheckNumericalStability("DecisionTreeRegressor.Fit", y, 0); err != nil {
		return err
	}

	b := &builder{
		cols:        columns(X),
		y:           y,
		params:      d,
		rng:         rand.New(rand.NewPCG(d.RandomState, d.RandomState^0x5851f42d4c957f2d)),
		importances: make([]float64, cols),
	}
	work := make([]int, len(indices))
	copy(work, indices)
	b.build(work, 0)

	d.Tree = b.tree
	d.NFeatures = cols
	d.FeatureImportances = normalize(b.importances)
	d.SetFitted()
	return nil
}

// Predict returns an n_samples × 1 matrix of leaf means.
func (d *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !d.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("DecisionTreeRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != d.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", d.NFeatures, cols, 1)
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, d.Tree.PredictAt(X, i))
	}
	return out, nil
}

// Score returns the coefficient of determination on (X, y).
func (d *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := d.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.Values(y)
	if err != nil {
		return 0, err
	}
	yPred, _ := metrics.Values(pred)
	return metrics.R2Score(yTrue, yPred)
}

// GetParams returns the hyperparameters.
func (d *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         d.MaxDepth,
		"min_samples_split": d.MinSamplesSplit,
		"min_samples_leaf":  d.MinSamplesLeaf,
		"max_features":      d.MaxFeatures,
		"splitter":          d.Splitter,
		"random_state":      d.RandomState,
	}
}

// Name implements model.Regressor.
func (d *DecisionTreeRegressor) Name() string {
	return "DecisionTreeRegressor"
}

// Clone returns an unfitted tree with the same hyperparameters.
func (d *DecisionTreeRegressor) Clone() model.Regressor {
	return d.CloneTree()
}

// CloneTree is Clone with the concrete type.
func (d *DecisionTreeRegressor) CloneTree() *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		MaxDepth:        d.MaxDepth,
		MinSamplesSplit: d.MinSamplesSplit,
		MinSamplesLeaf:  d.MinSamplesLeaf,
		MaxFeatures:     d.MaxFeatures,
		Splitter:        d.Splitter,
		RandomState:     d.RandomState,
	}
}

// GetDepth returns the depth of the fitted tree.
func (d *DecisionTreeRegressor) GetDepth() int {
	return d.Tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (d *DecisionTreeRegressor) GetNLeaves() int {
	return d.Tree.NLeaves()
}

// GetFeatureImportances returns the normalised squared-error reduction per feature.
func (d *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	out := make([]float64, len(d.FeatureImportances))
	copy(out, d.FeatureImportances)
	return out
}

var _ model.Regressor = (*DecisionTreeRegressor)(nil)

type builder struct {
	cols        [][]float64
	y           []float64
	params      *DecisionTreeRegressor
	rng         *rand.Rand
	importances []float64
	tree        Tree
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(indices []int, depth int) int {
	n := len(indices)
	sum, sumSq := 0.0, 0.0
	for _, idx := range indices {
		v := b.y[idx]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	sse := sumSq - sum*mean

	p := b.params
	if (p.MaxDepth > 0 && depth >= p.MaxDepth) ||
		n < p.MinSamplesSplit ||
		n < 2*p.MinSamplesLeaf ||
		sse <= minGain {
		return b.tree.AddLeaf(mean, n)
	}

	best := split{feature: -1}
	for _, j := range b.candidateFeatures() {
		var s split
		if p.Splitter == SplitterRandom {
			s = b.randomSplit(indices, j, sum)
		} else {
			s = b.bestSplit(indices, j, sum)
		}
		if s.feature >= 0 && s.gain > best.gain {
			best = s
		}
	}
	if best.feature < 0 || best.gain <= minGain {
		return b.tree.AddLeaf(mean, n)
	}

	left, right := partition(indices, b.cols[best.feature], best.threshold)
	b.importances[best.feature] += best.gain

	node := b.tree.AddSplit(best.feature, best.threshold, mean, best.gain, n)
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.SetChildren(node, l, r)
	return node
}

func (b *builder) candidateFeatures() []int {
	nf := len(b.cols)
	if b.params.MaxFeatures >= 1 {
		all := make([]int, nf)
		for i := range all {
			all[i] = i
		}
		return all
	}
	k := max(1, int(b.params.MaxFeatures*float64(nf)))
	return b.rng.Perm(nf)[:k]
}

// bestSplit scans every threshold between distinct sorted values. The gain is
// the reduction of the summed squared error, sumL²/nL + sumR²/nR - sum²/n.
func (b *builder) bestSplit(indices []int, feature int, total float64) split {
	x := b.cols[feature]
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.SliceStable(sorted, func(a, c int) bool { return x[sorted[a]] < x[sorted[c]] })

	n := len(sorted)
	minLeaf := b.params.MinSamplesLeaf
	parent := total * total / float64(n)
	best := split{feature: -1}

	sumL := 0.0
	for i := 0; i < n-1; i++ {
		sumL += b.y[sorted[i]]
		nL := i + 1
		nR := n - nL
		if nL < minLeaf || nR < minLeaf {
			continue
		}
		lo, hi := x[sorted[i]], x[sorted[i+1]]
		if lo == hi {
			continue
		}
		sumR := total - sumL
		gain := sumL*sumL/float64(nL) + sumR*sumR/float64(nR) - parent
		if best.feature < 0 || gain > best.gain {
			threshold := lo + (hi-lo)/2
			if threshold >= hi {
				threshold = lo
			}
			best = split{feature: feature, threshold: threshold, gain: gain}
		}
	}
	return best
}

// randomSplit draws one threshold uniformly between the node's minimum and
// maximum of the feature.
func (b *builder) randomSplit(indices []int, feature int, total float64) split {
	x := b.cols[feature]
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, idx := range indices {
		lo = math.Min(lo, x[idx])
		hi = math.Max(hi, x[idx])
	}
	if !(hi > lo) {
		return split{feature: -1}
	}
	threshold := lo + b.rng.Float64()*(hi-lo)
	if threshold >= hi {
		threshold = lo
	}

	sumL, nL := 0.0, 0
	for _, idx := range indices {
		if x[idx] <= threshold {
			sumL += b.y[idx]
			nL++
		}
	}
	n := len(indices)
	nR := n - nL
	if nL < b.params.MinSamplesLeaf || nR < b.params.MinSamplesLeaf {
		return split{feature: -1}
	}
	sumR := total - sumL
	gain := sumL*sumL/float64(nL) + sumR*sumR/float64(nR) - total*total/float64(n)
	return split{feature: feature, threshold: threshold, gain: gain}
}

// partition reorders indices in place so that the left child comes first.
func partition(indices []int, x []float64, threshold float64) (left, right []int) {
	i := 0
	for j := range indices {
		if x[indices[j]] <= threshold {
			indices[i], indices[j] = indices[j], indices[i]
			i++
		}
	}
	return indices[:i], indices[i:]
}

func columns(X mat.Matrix) [][]float64 {
	rows, cols := X.Dims()
	out := make([][]float64, cols)
	for j := range out {
		col := make([]float64, rows)
		for i := range col {
			col[i] = X.At(i, j)
		}
		out[j] = col
	}
	return out
}

func normalize(v []float64) []float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total > 0 {
		for i := range v {
			v[i] /= total
		}
	}
	return v
}
