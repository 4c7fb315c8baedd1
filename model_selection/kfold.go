// Package model_selection provides k-fold splitting and cross-validated
// scoring of regressors.
package model_selection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Fold holds the row indices of one train/test split of a k-fold.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n rows into NSplits consecutive folds, optionally after a
// seeded shuffle. Every row is in exactly one test fold.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a k-fold splitter.
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split returns NSplits folds over n rows. The first n % NSplits test folds
// are one row larger than the rest.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have more folds than samples")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	inTest := make([]bool, n)

	current := 0
	for i := range folds {
		size := foldSize
		if i < remainder {
			size++
		}
		test := append([]int(nil), indices[current:current+size]...)
		for _, idx := range test {
			inTest[idx] = true
		}
		train := make([]int, 0, n-size)
		for _, idx := range indices {
			if !inTest[idx] {
				train = append(train, idx)
			}
		}
		for _, idx := range test {
			inTest[idx] = false
		}
		folds[i] = Fold{Train: train, Test: test}
		current += size
	}
	return folds, nil
}

// Rows copies the given rows of X and y.
func Rows(X mat.Matrix, y []float64, indices []int) (*mat.Dense, *mat.Dense) {
	_, cols := X.Dims()
	xs := mat.NewDense(len(indices), cols, nil)
	ys := mat.NewDense(len(indices), 1, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			xs.Set(i, j, X.At(idx, j))
		}
		ys.Set(i, 0, y[idx])
	}
	return xs, ys
}
