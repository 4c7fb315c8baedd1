package ensemble

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/metrics"
)

// friedmanData returns a smooth non-linear target with a little noise.
func friedmanData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	r := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 4, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, r.Float64())
		}
		v := 10*math.Sin(math.Pi*X.At(i, 0)*X.At(i, 1)) + 20*(X.At(i, 2)-0.5)*(X.At(i, 2)-0.5) + 5*X.At(i, 3)
		y.Set(i, 0, v+0.1*r.NormFloat64())
	}
	return X, y
}

func r2(t *testing.T, m model.Regressor, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := m.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	yTrue, _ := metrics.Values(y)
	yPred, _ := metrics.Values(pred)
	score, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	return score
}

func TestForests(t *testing.T) {
	XTrain, yTrain := friedmanData(300, 1)
	XTest, yTest := friedmanData(200, 2)

	tests := []struct {
		name  string
		model model.Regressor
	}{
		{"RandomForestRegressor", NewRandomForestRegressor(WithNEstimators(30), WithRandomState(1))},
		{"ExtraTreesRegressor", NewExtraTreesRegressor(WithNEstimators(30), WithRandomState(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.model.Name() != tt.name {
				t.Errorf("Name() = %s", tt.model.Name())
			}
			if err := tt.model.Fit(XTrain, yTrain); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			if score := r2(t, tt.model, XTest, yTest); score < 0.6 {
				t.Errorf("held-out R2 = %v, expected the ensemble to learn the target", score)
			}
		})
	}
}

func TestForestDeterministicAcrossWorkers(t *testing.T) {
	X, y := friedmanData(120, 3)

	serial := NewRandomForestRegressor(WithNEstimators(12), WithRandomState(9), WithNJobs(1))
	wide := NewRandomForestRegressor(WithNEstimators(12), WithRandomState(9), WithNJobs(8))
	if err := serial.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := wide.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	a, _ := serial.Predict(X)
	b, _ := wide.Predict(X)
	if !mat.Equal(a, b) {
		t.Error("predictions depend on the number of workers")
	}
}

func TestForestDefaults(t *testing.T) {
	rf := NewRandomForestRegressor()
	et := NewExtraTreesRegressor()

	if rf.NEstimators != 100 || !rf.Bootstrap || rf.MaxFeatures != 1.0 {
		t.Errorf("unexpected random forest defaults: %+v", rf.GetParams())
	}
	if et.NEstimators != 100 || et.Bootstrap || et.Splitter != "random" {
		t.Errorf("unexpected extra trees defaults: %+v", et.GetParams())
	}
}

func TestForestCloneAndPersist(t *testing.T) {
	X, y := friedmanData(60, 4)
	et := NewExtraTreesRegressor(WithNEstimators(5), WithMaxDepth(4))
	if err := et.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	clone := et.Clone()
	if clone.IsFitted() {
		t.Error("clone must be unfitted")
	}
	if clone.GetParams()["max_depth"] != 4 {
		t.Errorf("clone lost hyperparameters: %v", clone.GetParams())
	}

	path := filepath.Join(t.TempDir(), "forest.gob")
	if err := model.SaveModel(et, path); err != nil {
		t.Fatal(err)
	}
	var loaded ExtraTreesRegressor
	if err := model.LoadModel(&loaded, path); err != nil {
		t.Fatal(err)
	}
	want, _ := et.Predict(X)
	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("loaded ensemble predicts differently")
	}

	imp := et.FeatureImportances()
	sum := 0.0
	for _, v := range imp {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum to %v, want 1", sum)
	}
}

func TestForestPredictBeforeFit(t *testing.T) {
	if _, err := NewRandomForestRegressor().Predict(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected an error")
	}
}
