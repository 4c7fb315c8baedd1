package training

import (
	"context"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/internal/config"
	"github.com/YuminosukeSato/findhome/internal/telemetry"
	"github.com/YuminosukeSato/findhome/pipeline"
	"github.com/YuminosukeSato/findhome/pkg/log"
)

// Run is one batch training run: split, fit the pipeline, train, evaluate.
type Run struct {
	Config  *config.Config
	Schema  pipeline.Schema
	Logger  log.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

// NewRun returns a run over the housing schema.
func NewRun(cfg *config.Config) *Run {
	return &Run{Config: cfg, Schema: pipeline.HousingSchema()}
}

// Execute runs every stage in order and stops at the first error.
func (r *Run) Execute(ctx context.Context) (*Bundle, *Report, error) {
	cfg := r.Config
	logger := log.OrDefault(r.Logger, "training")

	start := time.Now()
	splitter := &dataset.Splitter{
		TrainFraction: cfg.Data.TrainFraction,
		Seed:          cfg.Data.SplitSeed,
		Label:         cfg.Data.Label,
		Dir:           cfg.Artifacts.Dir,
		Logger:        logger.With(log.PhaseKey, log.PhaseIngestion),
	}
	partition, err := splitter.Run(ctx, cfg.Data.Path)
	if err != nil {
		return nil, nil, err
	}
	r.Metrics.ObserveStage("split", time.Since(start))
	r.Metrics.SetSamples("train", partition.Train.Len())
	r.Metrics.SetSamples("test", partition.Test.Len())

	start = time.Now()
	data, err := PrepareData(partition, r.Schema, cfg.Data.Label, logger)
	if err != nil {
		return nil, nil, err
	}
	r.Metrics.ObserveStage("preprocess", time.Since(start))

	trainer := &Trainer{Config: cfg, Logger: logger, Metrics: r.Metrics, Tracer: r.Tracer}
	bundle, err := trainer.Train(ctx, data)
	if err != nil {
		return nil, nil, err
	}

	evaluator := &Evaluator{
		Folds:   cfg.Evaluation.Folds,
		Seed:    cfg.Evaluation.Seed,
		Logger:  logger.With(log.RunIDKey, bundle.Metadata.RunID),
		Metrics: r.Metrics,
		Tracer:  r.Tracer,
	}
	if cfg.Artifacts.Plot {
		evaluator.PlotPath = filepath.Join(cfg.Artifacts.Dir, PlotName)
	}
	report, err := evaluator.Evaluate(ctx, bundle.Model, data)
	if err != nil {
		return nil, nil, err
	}
	return bundle, report, nil
}
