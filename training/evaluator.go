package training

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/internal/telemetry"
	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/model_selection"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/sklearn/linear_model"
)

// Evaluation defaults.
const (
	DefaultFolds    = 10
	DefaultEvalSeed = 42
)

// Report is the outcome of an evaluation.
type Report struct {
	// FitQuality is the mean cross-validated R2 on the training split.
	FitQuality float64
	// Error is the test MAE on the natural label scale.
	Error float64
	// FoldScores holds the R2 of each fold in fold order.
	FoldScores []float64
	// BaselineError is the test MAE of a ridge regression fit on the same
	// features, for comparison with Error.
	BaselineError float64
}

// Evaluator scores a fitted model on held-out data and by cross-validation.
type Evaluator struct {
	Folds int
	Seed  uint64
	// PlotPath, when set, receives a predicted-versus-actual scatter PNG.
	PlotPath string

	Logger  log.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

// NewEvaluator returns an evaluator with 10 shuffled folds seeded with 42.
func NewEvaluator() *Evaluator {
	return &Evaluator{Folds: DefaultFolds, Seed: DefaultEvalSeed}
}

// Evaluate computes the test MAE with m as fitted, and the mean R2 of
// clones of m re-fit on each training fold. m itself is not modified.
func (e *Evaluator) Evaluate(ctx context.Context, m model.Regressor, data *Data) (report *Report, err error) {
	if err := data.validate("Evaluator.Evaluate"); err != nil {
		return nil, err
	}
	if !m.IsFitted() {
		return nil, errors.NewFitBeforeApplyError(m.Name(), "Evaluate")
	}
	folds := e.Folds
	if folds == 0 {
		folds = DefaultFolds
	}
	logger := log.OrDefault(e.Logger, "evaluation").With(
		log.PhaseKey, log.PhaseValidation,
		log.OperationKey, log.OperationEvaluate,
		log.ModelNameKey, m.Name(),
	)

	tracer := e.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	ctx, span := tracer.Start(ctx, "training.Evaluate", trace.WithAttributes(
		attribute.Int("cv.folds", folds),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	start := time.Now()

	predicted, err := predictNatural(m, data.Pipeline, data.XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict test split")
	}
	mae, err := metrics.MAE(data.YTest, predicted)
	if err != nil {
		return nil, err
	}

	baseline, err := e.baseline(data)
	if err != nil {
		return nil, errors.Wrap(err, "baseline")
	}

	cv := model_selection.NewKFold(folds, true, e.Seed)
	cvResult, err := model_selection.CrossValScore(ctx, m, data.XTrain, data.YTrain, cv, metrics.R2Score, logger)
	if err != nil {
		return nil, errors.Wrap(err, "cross-validation")
	}

	report = &Report{
		FitQuality: cvResult.Mean(),
		Error:      mae,
		FoldScores: cvResult.Scores,

		BaselineError: baseline,
	}
	e.Metrics.SetEvaluation(report.Error, report.FitQuality)
	e.Metrics.ObserveStage("evaluate", time.Since(start))
	span.SetAttributes(
		attribute.Float64("metrics.mae", report.Error),
		attribute.Float64("metrics.r2_score", report.FitQuality),
	)

	if e.PlotPath != "" {
		if err := WriteScatter(e.PlotPath, data.YTest, predicted); err != nil {
			return nil, err
		}
		logger.Debug("Evaluation plot written", log.PathKey, e.PlotPath)
	}

	logger.Info("Model evaluated",
		log.MAEKey, report.Error,
		log.R2ScoreKey, report.FitQuality,
		"baseline_mae", report.BaselineError,
		log.SamplesKey, len(data.YTest),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return report, nil
}

// baseline returns the test MAE of a ridge regression. Its predictions are
// clamped to the training label range, outside of which the inverse label
// transform may be undefined.
func (e *Evaluator) baseline(data *Data) (float64, error) {
	r := linear_model.NewRidge()
	if err := r.Fit(data.XTrain, column(data.YTrain)); err != nil {
		return 0, err
	}
	pred, err := r.Predict(data.XTest)
	if err != nil {
		return 0, err
	}
	values, err := metrics.Values(pred)
	if err != nil {
		return 0, err
	}
	lo, hi := floats.Min(data.YTrain), floats.Max(data.YTrain)
	for i, v := range values {
		values[i] = min(max(v, lo), hi)
	}
	predicted, err := data.Pipeline.InverseLabels(values)
	if err != nil {
		return 0, err
	}
	return metrics.MAE(data.YTest, predicted)
}

func column(y []float64) *mat.Dense {
	return mat.NewDense(len(y), 1, y)
}
