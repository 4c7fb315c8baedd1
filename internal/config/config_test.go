package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "findhome.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsAndYAML(t *testing.T) {
	path := writeConfig(t, `
data:
  path: data/houses.csv
  split_seed: 7
training:
  family: extra-trees
  fine_tuning: false
tuning:
  strategy: tpe
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/houses.csv", cfg.Data.Path)
	assert.Equal(t, uint64(7), cfg.Data.SplitSeed)
	assert.Equal(t, FamilyExtraTrees, cfg.Training.Family)
	assert.False(t, cfg.Training.FineTuning)
	assert.Equal(t, "tpe", cfg.Tuning.Strategy)

	// untouched keys keep their defaults
	assert.Equal(t, "price", cfg.Data.Label)
	assert.Equal(t, 0.8, cfg.Data.TrainFraction)
	assert.Equal(t, "Artifacts", cfg.Artifacts.Dir)
	assert.Equal(t, 100, cfg.Tuning.Budget)
	assert.Equal(t, 10, cfg.Evaluation.Folds)
	assert.Equal(t, uint64(42), cfg.Evaluation.Seed)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "data:\n  path: a.csv\ntuning:\n  budget: 20\n")
	t.Setenv("FINDHOME_TUNING_BUDGET", "5")
	t.Setenv("FINDHOME_TRAINING_FAMILY", FamilyRandomForest)
	t.Setenv("FINDHOME_DATA_TRAIN_FRACTION", "0.7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Tuning.Budget)
	assert.Equal(t, FamilyRandomForest, cfg.Training.Family)
	assert.Equal(t, 0.7, cfg.Data.TrainFraction)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{"unknown family", "data: {path: a.csv}\ntraining: {family: xgboost}\n", "training.family"},
		{"fraction one", "data: {path: a.csv, train_fraction: 1}\n", "data.train_fraction"},
		{"fraction zero", "data: {path: a.csv, train_fraction: 0}\n", "data.train_fraction"},
		{"missing path", "training: {family: extra-trees}\n", "data.path"},
		{"single fold", "data: {path: a.csv}\nevaluation: {folds: 1}\n", "evaluation.folds"},
		{"zero budget", "data: {path: a.csv}\ntuning: {budget: 0}\n", "tuning.budget"},
		{"strategy", "data: {path: a.csv}\ntuning: {strategy: grid}\n", "tuning.strategy"},
		{"log format", "data: {path: a.csv}\nlogging: {format: xml}\n", "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			var ce *errors.ConfigurationError
			require.True(t, errors.As(err, &ce), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var de *errors.DataAccessError
	assert.True(t, errors.As(err, &de))

	_, err = Load(writeConfig(t, "data: [unterminated"))
	assert.True(t, errors.As(err, &de))
}

func TestLoadBadEnvironment(t *testing.T) {
	t.Setenv("FINDHOME_TUNING_BUDGET", "many")
	_, err := Load(writeConfig(t, "data: {path: a.csv}\n"))
	var ce *errors.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestYAMLKey(t *testing.T) {
	assert.Equal(t, "data.train_fraction", yamlKey("Config.Data.TrainFraction"))
	assert.Equal(t, "telemetry.metrics_file", yamlKey("Config.Telemetry.MetricsFile"))
}
