// Package config loads the training run configuration.
//
// Values are resolved in order: built-in defaults, then the YAML file, then
// FINDHOME_* environment variables, and the result is validated. The loaded
// Config is passed explicitly to every component that needs it.
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. FINDHOME_TRAINING_FAMILY.
const EnvPrefix = "FINDHOME"

// Model families.
const (
	FamilyGradientBoostedTree = "gradient-boosted-tree"
	FamilyExtraTrees          = "extra-trees"
	FamilyRandomForest        = "random-forest"
)

// Config is the complete run configuration.
type Config struct {
	Data       DataConfig       `yaml:"data"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Training   TrainingConfig   `yaml:"training"`
	Tuning     TuningConfig     `yaml:"tuning"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// DataConfig locates the labeled dataset and controls the split.
type DataConfig struct {
	Path          string  `yaml:"path" split_words:"true" validate:"required"`
	Label         string  `yaml:"label" split_words:"true" validate:"required"`
	TrainFraction float64 `yaml:"train_fraction" split_words:"true" validate:"gt=0,lt=1"`
	// SplitSeed seeds the shuffle. 0 derives a seed from the clock.
	SplitSeed uint64 `yaml:"split_seed" split_words:"true"`
}

// ArtifactsConfig controls where outputs are written.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" split_words:"true" validate:"required"`
	// Plot writes a predicted-vs-actual scatter to Dir/evaluation.png.
	Plot bool `yaml:"plot" split_words:"true"`
}

// TrainingConfig selects the model family.
type TrainingConfig struct {
	Family     string `yaml:"family" split_words:"true" validate:"oneof=gradient-boosted-tree extra-trees random-forest"`
	FineTuning bool   `yaml:"fine_tuning" split_words:"true"`
	// Workers bounds tree-level parallelism of the forests. 0 uses every CPU.
	Workers int `yaml:"workers" split_words:"true" validate:"gte=0"`
}

// TuningConfig controls the hyperparameter search.
type TuningConfig struct {
	Strategy string `yaml:"strategy" split_words:"true" validate:"oneof=gp tpe random"`
	Budget   int    `yaml:"budget" split_words:"true" validate:"gte=1"`
	Seed     uint64 `yaml:"seed" split_words:"true"`
}

// EvaluationConfig controls cross-validation.
type EvaluationConfig struct {
	Folds int    `yaml:"folds" split_words:"true" validate:"gte=2"`
	Seed  uint64 `yaml:"seed" split_words:"true"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" split_words:"true" validate:"oneof=console json"`
}

// TelemetryConfig enables metrics and trace export. Empty paths disable
// the corresponding exporter.
type TelemetryConfig struct {
	// MetricsFile receives the Prometheus text exposition of the run.
	MetricsFile string `yaml:"metrics_file" split_words:"true"`
	// TraceFile receives OpenTelemetry spans as JSON. "-" writes to stdout.
	TraceFile string `yaml:"trace_file" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Data: DataConfig{
			Label:         "price",
			TrainFraction: 0.8,
		},
		Artifacts: ArtifactsConfig{Dir: "Artifacts"},
		Training: TrainingConfig{
			Family:     FamilyGradientBoostedTree,
			FineTuning: true,
		},
		Tuning: TuningConfig{
			Strategy: "gp",
			Budget:   100,
		},
		Evaluation: EvaluationConfig{
			Folds: 10,
			Seed:  42,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewDataAccessError("config.Load", path, "cannot read configuration", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.NewDataAccessError("config.Load", path, "malformed YAML", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.NewConfigurationError(EnvPrefix, nil, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and reports the first violation as
// a ConfigurationError keyed by its YAML path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.NewConfigurationError(yamlKey(fe.StructNamespace()), fe.Value(),
			"violates "+fe.Tag()+constraint(fe.Param()))
	}
	return errors.NewConfigurationError("config", nil, err.Error())
}

func constraint(param string) string {
	if param == "" {
		return ""
	}
	return "=" + param
}

// yamlKey turns "Config.Data.TrainFraction" into "data.train_fraction".
func yamlKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
