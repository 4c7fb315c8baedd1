// Standard attribute keys for pipeline log records.
//
// Keys follow a hierarchical naming convention ("model.name",
// "data.samples") so that records from the splitter, the feature pipeline,
// the tuner and the evaluator can be filtered uniformly.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or transformer type.
	// Examples: "GradientBoostingRegressor", "MinMaxScaler"
	ModelNameKey = "model.name"

	// ModelFamilyKey is the configured model family.
	// Values: "gradient-boosted-tree", "extra-trees", "random-forest"
	ModelFamilyKey = "model.family"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// StageKey names a feature pipeline stage.
	StageKey = "pipeline.stage"

	// RunIDKey is the identifier of one training run.
	RunIDKey = "run.id"
)

// Data Shape and Storage
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// PathKey is a file system path read or written by the pipeline.
	PathKey = "io.path"
)

// Performance and Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records a loss value (trial MAE on the natural label scale).
	LossKey = "metrics.loss"

	// MAEKey records held-out mean absolute error.
	MAEKey = "metrics.mae"

	// R2ScoreKey records the coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// IterationKey records an iteration number (boosting round, optimizer step).
	IterationKey = "training.iteration"
)

// Search and Validation
const (
	// TrialKey is the zero-based index of a hyperparameter trial.
	TrialKey = "tuning.trial"

	// StrategyKey names the search strategy.
	StrategyKey = "tuning.strategy"

	// BudgetKey is the number of trials the search may run.
	BudgetKey = "tuning.budget"

	// FoldKey is the zero-based index of a cross-validation fold.
	FoldKey = "cv.fold"

	// HyperParamsKey contains hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// ErrorKindKey is the error category shown to users.
	ErrorKindKey = "error.kind"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationSplit     = "split"
	OperationTune      = "tune"
	OperationEvaluate  = "evaluate"

	PhaseIngestion     = "ingestion"
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"

	ErrorTrialFailed   = "TRIAL_FAILED"
	ErrorNotFitted     = "NOT_FITTED"
	ErrorInvalidConfig = "INVALID_CONFIG"
	ErrorDataAccess    = "DATA_ACCESS"
)
