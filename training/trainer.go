package training

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/internal/config"
	"github.com/YuminosukeSato/findhome/internal/telemetry"
	"github.com/YuminosukeSato/findhome/pipeline"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/sklearn/boosting"
	"github.com/YuminosukeSato/findhome/sklearn/ensemble"
	"github.com/YuminosukeSato/findhome/tuning"
)

// Trainer builds the configured model family, optionally tunes it, fits it
// on the training split and persists the resulting bundle.
type Trainer struct {
	Config  *config.Config
	Logger  log.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

func (t *Trainer) tracer() trace.Tracer {
	if t.Tracer == nil {
		return noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	return t.Tracer
}

// NewEstimator returns an unfitted estimator of the named family with its
// default hyperparameters.
func NewEstimator(family string, workers int) (model.Regressor, error) {
	switch family {
	case config.FamilyGradientBoostedTree:
		return boosting.NewGradientBoostingRegressor(), nil
	case config.FamilyExtraTrees:
		return ensemble.NewExtraTreesRegressor(ensemble.WithNJobs(workers)), nil
	case config.FamilyRandomForest:
		return ensemble.NewRandomForestRegressor(ensemble.WithNJobs(workers)), nil
	default:
		return nil, errors.NewConfigurationError("training.family", family,
			"must be one of gradient-boosted-tree, extra-trees, random-forest")
	}
}

// Train fits the final model and writes the bundle to the artifact directory.
//
// With fine tuning enabled the model is always a gradient-boosted tree whose
// hyperparameters come from the search; the search validates on the test
// split. Without it the configured family is fit with its defaults.
func (t *Trainer) Train(ctx context.Context, data *Data) (bundle *Bundle, err error) {
	if t.Config == nil {
		return nil, errors.NewConfigurationError("training", nil, "configuration is required")
	}
	if err := data.validate("Trainer.Train"); err != nil {
		return nil, err
	}
	cfg := t.Config
	runID := uuid.NewString()
	logger := log.OrDefault(t.Logger, "training").With(log.RunIDKey, runID, log.PhaseKey, log.PhaseTraining)

	ctx, span := t.tracer().Start(ctx, "training.Train", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("model.family", cfg.Training.Family),
		attribute.Bool("training.fine_tuning", cfg.Training.FineTuning),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	est, err := NewEstimator(cfg.Training.Family, cfg.Training.Workers)
	if err != nil {
		return nil, err
	}
	meta := Metadata{
		RunID:        runID,
		Family:       cfg.Training.Family,
		Tuned:        cfg.Training.FineTuning,
		TrainSamples: len(data.YTrain),
		Features:     data.Pipeline.FeatureNames(),
	}

	if cfg.Training.FineTuning {
		if cfg.Training.Family != config.FamilyGradientBoostedTree {
			logger.Warn("Fine tuning always yields a gradient-boosted tree",
				log.ModelFamilyKey, cfg.Training.Family)
		}
		result, err := t.tune(ctx, data, logger)
		if err != nil {
			return nil, err
		}
		params := boosting.DefaultParams()
		if err := params.SetAll(result.Params); err != nil {
			return nil, err
		}
		est = boosting.NewGradientBoostingRegressor(boosting.WithParams(params))
		meta.Family = config.FamilyGradientBoostedTree
		meta.BestLoss = result.Best.Loss
	}

	logger.Info("Fitting final model",
		log.ModelFamilyKey, meta.Family,
		log.ModelNameKey, est.Name(),
		log.SamplesKey, meta.TrainSamples,
		log.FeaturesKey, len(meta.Features),
	)
	if err := t.fit(ctx, est, data); err != nil {
		return nil, err
	}
	meta.Params = paramStrings(est.GetParams())
	meta.CreatedAt = time.Now().UTC()

	bundle = &Bundle{Pipeline: data.Pipeline, Model: est, Metadata: meta}
	dir := cfg.Artifacts.Dir
	if err := data.Pipeline.Save(filepath.Join(dir, pipeline.ArtifactName)); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, BundleName)
	if err := bundle.Save(path); err != nil {
		return nil, err
	}
	logger.Info("Bundle saved", log.PathKey, path, log.ModelNameKey, est.Name())
	return bundle, nil
}

func (t *Trainer) tune(ctx context.Context, data *Data, logger log.Logger) (*tuning.Result, error) {
	cfg := t.Config.Tuning
	ctx, span := t.tracer().Start(ctx, "training.Tune", trace.WithAttributes(
		attribute.String("tuning.strategy", cfg.Strategy),
		attribute.Int("tuning.budget", cfg.Budget),
	))
	defer span.End()
	start := time.Now()

	space := tuning.DefaultSpace()
	strategy, err := tuning.NewStrategy(cfg.Strategy, space, cfg.Seed)
	if err != nil {
		return nil, err
	}
	tuner := &tuning.Tuner{
		Strategy: strategy,
		Space:    space,
		Budget:   cfg.Budget,
		Objective: &tuning.GBTObjective{
			XTrain: data.XTrain,
			YTrain: data.YTrain,
			XValid: data.XTest,
			YValid: data.YTest,
			Labels: data.Pipeline,
			Base:   boosting.DefaultParams(),
		},
		Logger:   logger.With(log.StrategyKey, cfg.Strategy),
		Observer: t.Metrics,
	}
	result, err := tuner.Run(ctx)
	t.Metrics.ObserveStage("tune", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Float64("tuning.best_loss", result.Best.Loss),
		attribute.Int("tuning.failed", result.Failed),
	)
	return result, nil
}

func (t *Trainer) fit(ctx context.Context, est model.Regressor, data *Data) error {
	_, span := t.tracer().Start(ctx, "training.Fit", trace.WithAttributes(
		attribute.String("model.name", est.Name()),
	))
	defer span.End()
	start := time.Now()

	err := errors.SafeExecute(est.Name()+".Fit", func() error {
		return est.Fit(data.XTrain, column(data.YTrain))
	})
	t.Metrics.ObserveStage("fit", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
