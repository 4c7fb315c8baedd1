package tree

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// stepData returns y = 10 for x0 > 0.5 and y = 0 otherwise; x1 is noise.
func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0.0, 3,
		0.1, 1,
		0.2, 4,
		0.3, 1,
		0.7, 5,
		0.8, 9,
		0.9, 2,
		1.0, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 10, 10, 10, 10})
	return X, y
}

// TestDecisionTreeRegressor_FitPredict tests a single clean split
func TestDecisionTreeRegressor_FitPredict(t *testing.T) {
	X, y := stepData()

	dt := NewDecisionTreeRegressor(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	predictions, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 8; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
		}
	}

	root := dt.Tree.Nodes[0]
	if root.Feature != 0 || math.Abs(root.Threshold-0.5) > 1e-12 {
		t.Errorf("root split = feature %d at %v, want feature 0 at 0.5", root.Feature, root.Threshold)
	}
	if dt.GetNLeaves() != 2 {
		t.Errorf("expected 2 leaves, got %d", dt.GetNLeaves())
	}

	importances := dt.GetFeatureImportances()
	if importances[0] != 1 || importances[1] != 0 {
		t.Errorf("importances = %v, want [1 0]", importances)
	}
}

// TestDecisionTreeRegressor_LeafMeans tests that leaves predict the mean of their samples
func TestDecisionTreeRegressor_LeafMeans(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 2, 2})
	y := mat.NewDense(4, 1, []float64{1, 3, 10, 14})

	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pred, _ := dt.Predict(mat.NewDense(2, 1, []float64{0, 5}))
	if pred.At(0, 0) != 2 || pred.At(1, 0) != 12 {
		t.Errorf("got %v, %v; want 2, 12", pred.At(0, 0), pred.At(1, 0))
	}
}

// TestDecisionTreeRegressor_MaxDepth tests the depth limit
func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	X := mat.NewDense(32, 1, nil)
	y := mat.NewDense(32, 1, nil)
	for i := 0; i < 32; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, math.Sin(float64(i)))
	}

	for _, depth := range []int{1, 2, 4} {
		dt := NewDecisionTreeRegressor(WithMaxDepth(depth))
		if err := dt.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		if got := dt.GetDepth(); got > depth {
			t.Errorf("depth %d exceeds max_depth=%d", got, depth)
		}
	}
}

// TestDecisionTreeRegressor_MinSamples tests minimum samples constraints
func TestDecisionTreeRegressor_MinSamples(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i*i))
	}

	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for _, n := range dt.Tree.Nodes {
		if n.IsLeaf() && n.Samples < 3 {
			t.Errorf("leaf with %d samples violates min_samples_leaf=3", n.Samples)
		}
	}
}

// TestDecisionTreeRegressor_RandomSplitter tests seeded random thresholds
func TestDecisionTreeRegressor_RandomSplitter(t *testing.T) {
	X, y := stepData()

	a := NewDecisionTreeRegressor(WithSplitter(SplitterRandom), WithRandomState(7))
	b := NewDecisionTreeRegressor(WithSplitter(SplitterRandom), WithRandomState(7))
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if len(a.Tree.Nodes) != len(b.Tree.Nodes) {
		t.Fatalf("same seed grew different trees")
	}
	for i := range a.Tree.Nodes {
		if a.Tree.Nodes[i] != b.Tree.Nodes[i] {
			t.Fatalf("node %d differs: %+v vs %+v", i, a.Tree.Nodes[i], b.Tree.Nodes[i])
		}
	}

	score, err := a.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score < 0.99 {
		t.Errorf("fully grown random tree should fit the training data, R2 = %v", score)
	}
}

// TestDecisionTreeRegressor_FitIndices tests fitting on repeated row indices
func TestDecisionTreeRegressor_FitIndices(t *testing.T) {
	X, _ := stepData()
	labels := []float64{0, 0, 0, 0, 10, 10, 10, 10}

	dt := NewDecisionTreeRegressor()
	if err := dt.FitIndices(X, labels, []int{0, 0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	pred, _ := dt.Predict(X)
	for i := 0; i < 8; i++ {
		if pred.At(i, 0) != 0 {
			t.Fatalf("tree fit on low rows only should predict 0, got %v", pred.At(i, 0))
		}
	}
}

// TestDecisionTreeRegressor_InvalidParams tests parameter validation
func TestDecisionTreeRegressor_InvalidParams(t *testing.T) {
	X, y := stepData()
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative depth", WithMaxDepth(-1)},
		{"min_samples_split", WithMinSamplesSplit(1)},
		{"min_samples_leaf", WithMinSamplesLeaf(0)},
		{"max_features", WithMaxFeatures(1.5)},
		{"splitter", WithSplitter("median")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewDecisionTreeRegressor(tt.opt).Fit(X, y); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

// TestDecisionTreeRegressor_NotFitted tests error when predicting without fitting
func TestDecisionTreeRegressor_NotFitted(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 2, []float64{1, 2}))

	var fe *errors.FitBeforeApplyError
	if !errors.As(err, &fe) {
		t.Errorf("expected FitBeforeApplyError, got %v", err)
	}
}

// TestDecisionTreeRegressor_CloneAndPersist tests Clone and gob round trip
func TestDecisionTreeRegressor_CloneAndPersist(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMaxDepth(2), WithRandomState(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	clone := dt.Clone()
	if clone.IsFitted() {
		t.Error("clone must be unfitted")
	}
	if clone.GetParams()["max_depth"] != 2 {
		t.Errorf("clone lost hyperparameters: %v", clone.GetParams())
	}

	path := filepath.Join(t.TempDir(), "tree.gob")
	if err := model.SaveModel(dt, path); err != nil {
		t.Fatal(err)
	}
	var loaded DecisionTreeRegressor
	if err := model.LoadModel(&loaded, path); err != nil {
		t.Fatal(err)
	}
	want, _ := dt.Predict(X)
	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("loaded tree predicts differently")
	}
}
