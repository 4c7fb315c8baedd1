// Package findhome estimates residential property prices from tabular
// attributes and selects and tunes the regression model used for it.
//
// findhome is an offline batch trainer. A run splits a labeled dataset,
// fits a feature pipeline on the training split, optionally searches
// gradient-boosted tree hyperparameters, fits the final model and evaluates
// it on held-out data and by cross-validation.
//
// # Command line
//
//	findhome synth -rows 1000 -out data.csv
//	findhome train -config findhome.yaml
//	findhome predict -bundle Artifacts/model.gob -input rows.csv
//
// # Library use
//
//	cfg, err := config.Load("findhome.yaml")
//	if err != nil {
//	    return err
//	}
//	bundle, report, err := training.NewRun(cfg).Execute(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("MAE %.3f, CV R2 %.3f\n", report.Error, report.FitQuality)
//
//	prices, err := bundle.PredictPrices(frame)
//
// # Packages
//
//   - dataset: CSV/XLSX loading, reproducible train/test split
//   - preprocessing, pipeline: categorical encoders, scaling, Yeo-Johnson label transform
//   - sklearn/tree, sklearn/ensemble, sklearn/boosting: regression trees, forests, gradient boosting
//   - sklearn/linear_model: ridge regression used as an evaluation baseline
//   - model_selection: k-fold splitting and parallel cross-validation
//   - tuning: hyperparameter search (Gaussian process, TPE, random)
//   - training: trainer, evaluator and the persisted model bundle
//
// # Configuration
//
// A YAML file provides the run configuration and FINDHOME_* environment
// variables override it, e.g. FINDHOME_TRAINING_FAMILY=extra-trees.
//
// # Errors
//
// Errors carry a kind (DataAccessError, ConfigurationError,
// FitBeforeApplyError, TrialFailure and others in pkg/errors) and a stack
// trace. The command line prints only the kind and the message.
package findhome
