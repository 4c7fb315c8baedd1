package training

import (
	"encoding/gob"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/pipeline"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/sklearn/boosting"
	"github.com/YuminosukeSato/findhome/sklearn/ensemble"
)

// BundleName is the file name of a persisted bundle.
const BundleName = "model.gob"

func init() {
	gob.Register(&boosting.GradientBoostingRegressor{})
	gob.Register(&ensemble.RandomForestRegressor{})
	gob.Register(&ensemble.ExtraTreesRegressor{})
}

// Metadata describes how a bundle was produced.
type Metadata struct {
	RunID     string
	Family    string
	Tuned     bool
	Params    map[string]string
	CreatedAt time.Time

	TrainSamples int
	Features     []string
	// BestLoss is the validation MAE of the best trial when Tuned is true.
	BestLoss float64
}

// Bundle binds a fitted model to the pipeline its inputs came from.
type Bundle struct {
	Pipeline *pipeline.Pipeline
	Model    model.Regressor
	Metadata Metadata
}

// Save writes the bundle as a single gob artifact.
func (b *Bundle) Save(path string) error {
	if b.Model == nil || !b.Model.IsFitted() {
		return errors.NewFitBeforeApplyError("Bundle", "Save")
	}
	if b.Pipeline == nil || !b.Pipeline.IsFitted() {
		return errors.NewFitBeforeApplyError("Pipeline", "Save")
	}
	return model.SaveModel(b, path)
}

// LoadBundle reads a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	var b Bundle
	if err := model.LoadModel(&b, path); err != nil {
		return nil, err
	}
	if b.Model == nil || !b.Model.IsFitted() || b.Pipeline == nil || !b.Pipeline.IsFitted() {
		return nil, errors.NewDataAccessError("training.LoadBundle", path, "artifact holds an unfitted model", nil)
	}
	return &b, nil
}

// PredictPrices returns natural-scale price estimates for the rows of frame.
// A label column, if present, is ignored.
func (b *Bundle) PredictPrices(frame *dataset.Frame) ([]float64, error) {
	X, err := b.Pipeline.Apply(frame)
	if err != nil {
		return nil, err
	}
	return predictNatural(b.Model, b.Pipeline, X)
}

// predictNatural predicts on the transformed scale and inverts the label
// transform.
func predictNatural(m model.Regressor, p *pipeline.Pipeline, X mat.Matrix) ([]float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	values, err := metrics.Values(pred)
	if err != nil {
		return nil, err
	}
	if err := errors.CheckNumericalStability(m.Name()+".Predict", values, 0); err != nil {
		return nil, err
	}
	return p.InverseLabels(values)
}

func paramStrings(params map[string]interface{}) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = fmt.Sprint(v)
	}
	return out
}
