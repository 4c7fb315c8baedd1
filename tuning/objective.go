package tuning

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/sklearn/boosting"
)

// Objective evaluates the loss of one hyperparameter assignment.
type Objective interface {
	Evaluate(ctx context.Context, params map[string]float64) (float64, error)
}

// ObjectiveFunc adapts a function to Objective.
type ObjectiveFunc func(ctx context.Context, params map[string]float64) (float64, error)

// Evaluate calls f.
func (f ObjectiveFunc) Evaluate(ctx context.Context, params map[string]float64) (float64, error) {
	return f(ctx, params)
}

// LabelInverter maps model-scale predictions back to the label's natural
// scale. A fitted pipeline satisfies it.
type LabelInverter interface {
	InverseLabels(x []float64) ([]float64, error)
}

// GBTObjective fits a fresh gradient-boosted-tree model on the training
// split and returns its mean absolute error on the validation split, after
// mapping predictions back to the natural scale.
type GBTObjective struct {
	XTrain mat.Matrix
	// YTrain holds transformed labels.
	YTrain []float64
	XValid mat.Matrix
	// YValid holds natural-scale labels.
	YValid []float64
	Labels LabelInverter
	// Base supplies every hyperparameter the candidate does not set.
	Base boosting.Params
}

// Evaluate implements Objective.
func (o *GBTObjective) Evaluate(ctx context.Context, params map[string]float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p := o.Base
	if err := p.SetAll(params); err != nil {
		return 0, err
	}

	m := boosting.NewGradientBoostingRegressor(boosting.WithParams(p))
	if err := m.Fit(o.XTrain, mat.NewDense(len(o.YTrain), 1, o.YTrain)); err != nil {
		return 0, err
	}
	pred, err := m.Predict(o.XValid)
	if err != nil {
		return 0, err
	}
	values, err := metrics.Values(pred)
	if err != nil {
		return 0, err
	}
	if err := errors.CheckNumericalStability("GBTObjective.Predict", values, 0); err != nil {
		return 0, err
	}
	natural, err := o.Labels.InverseLabels(values)
	if err != nil {
		return 0, err
	}
	if err := errors.CheckNumericalStability("GBTObjective.InverseLabels", natural, 0); err != nil {
		return 0, err
	}
	return metrics.MAE(o.YValid, natural)
}
