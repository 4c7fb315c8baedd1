package training

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/internal/config"
	"github.com/YuminosukeSato/findhome/internal/telemetry"
	"github.com/YuminosukeSato/findhome/pipeline"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/sklearn/boosting"
	"github.com/YuminosukeSato/findhome/sklearn/ensemble"
)

func preparedData(t *testing.T, n int) *Data {
	t.Helper()
	train, test, err := dataset.Split(dataset.Synthetic(n, 11), 0.8, 3)
	require.NoError(t, err)
	data, err := PrepareData(&dataset.Partition{Train: train, Test: test}, pipeline.HousingSchema(), dataset.ColPrice, nil)
	require.NoError(t, err)
	return data
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Data.Path = filepath.Join(cfg.Artifacts.Dir, "houses.csv")
	cfg.Data.SplitSeed = 7
	return &cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Training.FineTuning = false
	cfg.Artifacts.Plot = true
	cfg.Evaluation.Folds = 5
	require.NoError(t, dataset.WriteCSV(dataset.Synthetic(1000, 1), cfg.Data.Path))

	metrics := telemetry.NewMetrics()
	run := NewRun(cfg)
	run.Metrics = metrics
	bundle, report, err := run.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "GradientBoostingRegressor", bundle.Model.Name())
	assert.Equal(t, 800, bundle.Metadata.TrainSamples)
	assert.False(t, bundle.Metadata.Tuned)
	_, err = uuid.Parse(bundle.Metadata.RunID)
	assert.NoError(t, err)

	assert.Len(t, report.FoldScores, 5)
	assert.Greater(t, report.FitQuality, 0.6)
	assert.Greater(t, report.Error, 0.0)
	assert.False(t, math.IsNaN(report.Error))
	assert.Greater(t, report.BaselineError, 0.0)
	assert.False(t, math.IsNaN(report.BaselineError))

	for _, name := range []string{dataset.TrainFile, dataset.TestFile, pipeline.ArtifactName, BundleName, PlotName} {
		_, err := os.Stat(filepath.Join(cfg.Artifacts.Dir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := LoadBundle(filepath.Join(cfg.Artifacts.Dir, BundleName))
	require.NoError(t, err)
	assert.Equal(t, bundle.Metadata.RunID, loaded.Metadata.RunID)

	test, err := dataset.Load(filepath.Join(cfg.Artifacts.Dir, dataset.TestFile))
	require.NoError(t, err)
	want, err := bundle.PredictPrices(test)
	require.NoError(t, err)
	got, err := loaded.PredictPrices(test)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)

	// labels are back on the natural price scale
	for _, v := range got {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 50.0)
	}
}

func TestEvaluatorDeterministic(t *testing.T) {
	data := preparedData(t, 400)
	m := ensemble.NewExtraTreesRegressor(ensemble.WithNEstimators(10), ensemble.WithRandomState(5))
	require.NoError(t, m.Fit(data.XTrain, column(data.YTrain)))

	e := &Evaluator{Folds: 4, Seed: 42}
	first, err := e.Evaluate(context.Background(), m, data)
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), m, data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.FoldScores, 4)
	assert.True(t, m.IsFitted())
}

func TestEvaluateUnfitted(t *testing.T) {
	data := preparedData(t, 200)
	_, err := NewEvaluator().Evaluate(context.Background(), boosting.NewGradientBoostingRegressor(), data)
	var fe *errors.FitBeforeApplyError
	assert.True(t, errors.As(err, &fe))
}

func TestTrainUnknownFamily(t *testing.T) {
	cfg := testConfig(t)
	cfg.Training.Family = "xgboost"
	_, err := (&Trainer{Config: cfg}).Train(context.Background(), preparedData(t, 200))
	var ce *errors.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "training.family", ce.Key)
}

func TestTrainFamilies(t *testing.T) {
	data := preparedData(t, 300)
	tests := []struct {
		family string
		name   string
	}{
		{config.FamilyGradientBoostedTree, "GradientBoostingRegressor"},
		{config.FamilyExtraTrees, "ExtraTreesRegressor"},
		{config.FamilyRandomForest, "RandomForestRegressor"},
	}
	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Training.FineTuning = false
			cfg.Training.Family = tt.family
			bundle, err := (&Trainer{Config: cfg}).Train(context.Background(), data)
			require.NoError(t, err)
			assert.Equal(t, tt.name, bundle.Model.Name())
			assert.Equal(t, tt.family, bundle.Metadata.Family)
			assert.NotEmpty(t, bundle.Metadata.Params)
		})
	}
}

func TestTrainFineTuningYieldsBoosting(t *testing.T) {
	cfg := testConfig(t)
	cfg.Training.Family = config.FamilyRandomForest
	cfg.Training.FineTuning = true
	cfg.Tuning.Strategy = "random"
	cfg.Tuning.Budget = 3

	logger, _ := log.NewTestLogger(log.LevelDebug)
	bundle, err := (&Trainer{Config: cfg, Logger: logger, Metrics: telemetry.NewMetrics()}).
		Train(context.Background(), preparedData(t, 300))
	require.NoError(t, err)

	gbt, ok := bundle.Model.(*boosting.GradientBoostingRegressor)
	require.True(t, ok)
	assert.Equal(t, 180, gbt.Params.NEstimators)
	assert.Equal(t, uint64(0), gbt.Params.RandomState)
	assert.True(t, bundle.Metadata.Tuned)
	assert.Equal(t, config.FamilyGradientBoostedTree, bundle.Metadata.Family)
	assert.Greater(t, bundle.Metadata.BestLoss, 0.0)
	assert.True(t, logger.ContainsMessage("Fine tuning always yields a gradient-boosted tree"))
	assert.Equal(t, 3, logger.CountMessages("Trial finished")+logger.CountMessages("Trial failed"))
}

func TestLoadBundleMissing(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), BundleName))
	var de *errors.DataAccessError
	assert.True(t, errors.As(err, &de))
}

func TestWriteScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), PlotName)
	require.NoError(t, WriteScatter(path, []float64{1, 2, 3}, []float64{1.1, 1.9, 3.2}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	var de *errors.DimensionError
	assert.True(t, errors.As(WriteScatter(path, []float64{1}, nil), &de))
}
