package model_selection

import (
	"context"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/sklearn/tree"
)

func TestKFoldPartitions(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		splits  int
		shuffle bool
	}{
		{"even", 20, 5, false},
		{"remainder", 23, 10, true},
		{"leave one out", 4, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			folds, err := NewKFold(tt.splits, tt.shuffle, 42).Split(tt.n)
			if err != nil {
				t.Fatal(err)
			}
			if len(folds) != tt.splits {
				t.Fatalf("expected %d folds, got %d", tt.splits, len(folds))
			}
			seen := make([]int, tt.n)
			for i, f := range folds {
				if len(f.Train)+len(f.Test) != tt.n {
					t.Errorf("fold %d: %d + %d rows", i, len(f.Train), len(f.Test))
				}
				test := make(map[int]bool)
				for _, idx := range f.Test {
					seen[idx]++
					test[idx] = true
				}
				for _, idx := range f.Train {
					if test[idx] {
						t.Fatalf("fold %d: row %d in both train and test", i, idx)
					}
				}
				want := tt.n / tt.splits
				if i < tt.n%tt.splits {
					want++
				}
				if len(f.Test) != want {
					t.Errorf("fold %d: test size %d, want %d", i, len(f.Test), want)
				}
			}
			for idx, c := range seen {
				if c != 1 {
					t.Errorf("row %d is in %d test folds", idx, c)
				}
			}
		})
	}
}

func TestKFoldShuffleDeterministic(t *testing.T) {
	a, _ := NewKFold(10, true, 42).Split(50)
	b, _ := NewKFold(10, true, 42).Split(50)
	c, _ := NewKFold(10, true, 7).Split(50)

	same := func(x, y []Fold) bool {
		for i := range x {
			for k := range x[i].Test {
				if x[i].Test[k] != y[i].Test[k] {
					return false
				}
			}
		}
		return true
	}
	if !same(a, b) {
		t.Error("equal seeds must give equal folds")
	}
	if same(a, c) {
		t.Error("different seeds gave identical folds")
	}
}

func TestKFoldErrors(t *testing.T) {
	if _, err := NewKFold(1, false, 0).Split(10); err == nil {
		t.Error("expected an error for n_splits < 2")
	}
	if _, err := NewKFold(5, false, 0).Split(3); err == nil {
		t.Error("expected an error for more folds than rows")
	}
}

func linearData(n int) (*mat.Dense, []float64) {
	r := rand.New(rand.NewPCG(1, 1))
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, r.Float64())
		X.Set(i, 1, r.Float64())
		y[i] = 3*X.At(i, 0) + X.At(i, 1)
	}
	return X, y
}

func TestCrossValScore(t *testing.T) {
	X, y := linearData(200)
	est := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(6))

	res, err := CrossValScore(context.Background(), est, X, y, NewKFold(5, true, 42), metrics.R2Score, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Scores) != 5 {
		t.Fatalf("expected 5 scores, got %d", len(res.Scores))
	}
	if res.Mean() < 0.8 {
		t.Errorf("mean R2 = %v", res.Mean())
	}
	if est.IsFitted() {
		t.Error("CrossValScore must fit clones, not the estimator itself")
	}

	again, err := CrossValScore(context.Background(), est, X, y, NewKFold(5, true, 42), metrics.R2Score, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range res.Scores {
		if res.Scores[i] != again.Scores[i] {
			t.Errorf("fold %d: %v != %v", i, res.Scores[i], again.Scores[i])
		}
	}
}

func TestCrossValScoreCancelled(t *testing.T) {
	X, y := linearData(50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CrossValScore(ctx, tree.NewDecisionTreeRegressor(), X, y, NewKFold(5, false, 0), metrics.R2Score, nil)
	if err == nil {
		t.Error("expected the cancelled context to stop cross-validation")
	}
}
