package model_selection

import (
	"context"
	"runtime"

	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
)

// Scorer scores predictions against true labels. Higher is better for R²,
// lower for error metrics; CrossValScore does not interpret the value.
type Scorer func(yTrue, yPred []float64) (float64, error)

// CVResult holds per-fold scores in fold order.
type CVResult struct {
	Scores []float64
}

// Mean returns the mean fold score.
func (r CVResult) Mean() float64 {
	if len(r.Scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range r.Scores {
		sum += s
	}
	return sum / float64(len(r.Scores))
}

// CrossValScore fits a clone of est on the training rows of every fold and
// scores it on the held-out rows. Folds run concurrently, at most
// GOMAXPROCS at a time, and the first failure cancels the others.
func CrossValScore(ctx context.Context, est model.Regressor, X mat.Matrix, y []float64,
	cv *KFold, score Scorer, logger log.Logger) (*CVResult, error) {
	logger = log.OrDefault(logger, "model_selection")

	rows, _ := X.Dims()
	if rows != len(y) {
		return nil, errors.NewDimensionError("CrossValScore", rows, len(y), 0)
	}
	folds, err := cv.Split(rows)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, fold := range folds {
		g.Go(func() (err error) {
			defer errors.Recover(&err, "CrossValScore")
			if err := ctx.Err(); err != nil {
				return err
			}

			m := est.Clone()
			xTrain, yTrain := Rows(X, y, fold.Train)
			if err := m.Fit(xTrain, yTrain); err != nil {
				return errors.Wrapf(err, "fold %d", i)
			}
			xTest, yTest := Rows(X, y, fold.Test)
			pred, err := m.Predict(xTest)
			if err != nil {
				return errors.Wrapf(err, "fold %d", i)
			}
			yPred, err := metrics.Values(pred)
			if err != nil {
				return errors.Wrapf(err, "fold %d", i)
			}
			yTrue, _ := metrics.Values(yTest)
			s, err := score(yTrue, yPred)
			if err != nil {
				return errors.Wrapf(err, "fold %d", i)
			}
			scores[i] = s

			logger.Debug("Fold scored",
				log.FoldKey, i,
				log.SamplesKey, len(fold.Test),
				"score", s,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &CVResult{Scores: scores}, nil
}
