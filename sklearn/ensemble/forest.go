// Package ensemble implements averaged tree ensembles for regression:
// random forests and extremely randomized trees.
package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/core/parallel"
	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/sklearn/tree"
)

// Forest holds the hyperparameters and fitted trees shared by
// RandomForestRegressor and ExtraTreesRegressor.
type Forest struct {
	model.BaseEstimator

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     float64
	Bootstrap       bool
	Splitter        string
	RandomState     uint64
	// NJobs bounds the number of trees grown concurrently. 0 uses every CPU.
	NJobs int

	Trees     []*tree.DecisionTreeRegressor
	NFeatures int
}

// Option configures a forest.
type Option func(*Forest)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(f *Forest) { f.NEstimators = n } }

// WithMaxDepth sets the depth limit of every tree. 0 means unlimited.
func WithMaxDepth(depth int) Option { return func(f *Forest) { f.MaxDepth = depth } }

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option { return func(f *Forest) { f.MinSamplesLeaf = n } }

// WithMaxFeatures sets the fraction of features examined per split.
func WithMaxFeatures(fraction float64) Option { return func(f *Forest) { f.MaxFeatures = fraction } }

// WithRandomState sets the seed from which every tree seed is derived.
func WithRandomState(seed uint64) Option { return func(f *Forest) { f.RandomState = seed } }

// WithNJobs bounds tree-level parallelism.
func WithNJobs(n int) Option { return func(f *Forest) { f.NJobs = n } }

func newForest(bootstrap bool, splitter string, opts []Option) Forest {
	f := Forest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     1.0,
		Bootstrap:       bootstrap,
		Splitter:        splitter,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// treeSeed derives the seed of tree i with a splitmix64 step, so that tree i
// is identical no matter which worker grows it.
func treeSeed(seed uint64, i int) uint64 {
	z := seed + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Fit grows NEstimators trees in parallel.
func (f *Forest) Fit(X, y mat.Matrix) error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	labels, err := metrics.Values(y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("Forest.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(labels) != rows {
		return errors.NewDimensionError("Forest.Fit", rows, len(labels), 0)
	}
	dense := mat.DenseCopyOf(X)

	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)
	parallel.ParallelizeWorkers(f.NEstimators, f.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			trees[i], errs[i] = f.fitTree(dense, labels, i)
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}

	f.Trees = trees
	f.NFeatures = cols
	f.SetFitted()

	log.GetLoggerWithName("ensemble").Debug("Forest fitted",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", f.NEstimators,
		"bootstrap", f.Bootstrap,
	)
	return nil
}

func (f *Forest) fitTree(X *mat.Dense, y []float64, i int) (t *tree.DecisionTreeRegressor, err error) {
	defer errors.Recover(&err, "Forest.fitTree")

	seed := treeSeed(f.RandomState, i)
	t = tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(f.MaxDepth),
		tree.WithMinSamplesSplit(f.MinSamplesSplit),
		tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
		tree.WithMaxFeatures(f.MaxFeatures),
		tree.WithSplitter(f.Splitter),
		tree.WithRandomState(seed),
	)

	n := len(y)
	indices := make([]int, n)
	if f.Bootstrap {
		r := rand.New(rand.NewPCG(seed, ^seed))
		for k := range indices {
			indices[k] = r.IntN(n)
		}
	} else {
		for k := range indices {
			indices[k] = k
		}
	}
	if err := t.FitIndices(X, y, indices); err != nil {
		return nil, err
	}
	return t, nil
}

// Predict averages the predictions of every tree.
func (f *Forest) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !f.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("Forest", "Predict")
	}
	rows, cols := X.Dims()
	if cols != f.NFeatures {
		return nil, errors.NewDimensionError("Forest.Predict", f.NFeatures, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, 256, func(start, end int) {
		for i := start; i < end; i++ {
			sum := 0.0
			for _, t := range f.Trees {
				sum += t.Tree.PredictAt(X, i)
			}
			out.Set(i, 0, sum/float64(len(f.Trees)))
		}
	})
	return out, nil
}

// GetParams returns the hyperparameters.
func (f *Forest) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"max_depth":         f.MaxDepth,
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"random_state":      f.RandomState,
	}
}

// FeatureImportances returns the mean normalised importance over trees.
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, f.NFeatures)
	for _, t := range f.Trees {
		for j, v := range t.FeatureImportances {
			out[j] += v / float64(len(f.Trees))
		}
	}
	return out
}

func (f *Forest) unfitted() Forest {
	return Forest{
		NEstimators:     f.NEstimators,
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MinSamplesLeaf:  f.MinSamplesLeaf,
		MaxFeatures:     f.MaxFeatures,
		Bootstrap:       f.Bootstrap,
		Splitter:        f.Splitter,
		RandomState:     f.RandomState,
		NJobs:           f.NJobs,
	}
}

// RandomForestRegressor averages best-split trees grown on bootstrap samples.
type RandomForestRegressor struct {
	Forest
}

// NewRandomForestRegressor creates a forest with scikit-learn defaults:
// 100 trees, bootstrap sampling, every feature considered at each split.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{Forest: newForest(true, tree.SplitterBest, opts)}
}

// Name implements model.Regressor.
func (r *RandomForestRegressor) Name() string { return "RandomForestRegressor" }

// Clone returns an unfitted forest with the same hyperparameters.
func (r *RandomForestRegressor) Clone() model.Regressor {
	return &RandomForestRegressor{Forest: r.unfitted()}
}

// ExtraTreesRegressor averages random-threshold trees grown on the full sample.
type ExtraTreesRegressor struct {
	Forest
}

// NewExtraTreesRegressor creates an ensemble with scikit-learn defaults:
// 100 trees, no bootstrap, every feature considered at each split.
func NewExtraTreesRegressor(opts ...Option) *ExtraTreesRegressor {
	return &ExtraTreesRegressor{Forest: newForest(false, tree.SplitterRandom, opts)}
}

// Name implements model.Regressor.
func (e *ExtraTreesRegressor) Name() string { return "ExtraTreesRegressor" }

// Clone returns an unfitted ensemble with the same hyperparameters.
func (e *ExtraTreesRegressor) Clone() model.Regressor {
	return &ExtraTreesRegressor{Forest: e.unfitted()}
}

var (
	_ model.Regressor = (*RandomForestRegressor)(nil)
	_ model.Regressor = (*ExtraTreesRegressor)(nil)
)
