// Package pipeline composes the preprocessing stages into the fitted feature
// pipeline that turns property records into a dense feature matrix.
//
// Stages run in a fixed order: ordinal encoding, one-hot encoding, target
// encoding, element-wise functions, passthrough, then min-max scaling of every
// resulting column. The label is handled separately by a Yeo-Johnson
// transform fit on the training labels.
//
//	p, _ := pipeline.New(pipeline.HousingSchema())
//	_ = p.Fit(train, labels)
//	X, _ := p.Apply(test)
package pipeline

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/preprocessing"
)

// ArtifactName is the file name of a persisted pipeline.
const ArtifactName = "pipeline.gob"

// Pipeline is fit exactly once and is read-only afterwards, so a fitted
// pipeline can be shared by concurrent Apply calls.
type Pipeline struct {
	Schema Schema
	State  *model.StateManager

	Ordinal   []*preprocessing.OrdinalEncoder
	Nominal   []*preprocessing.OneHotEncoder
	Target    []*preprocessing.TargetEncoder
	Functions []*preprocessing.FunctionTransformer
	Scaler    *preprocessing.MinMaxScaler
	Label     *preprocessing.PowerTransformer

	// Names are the output column names in matrix order.
	Names []string

	logger log.Logger
}

// New creates an unfitted pipeline for schema.
func New(schema Schema) (*Pipeline, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		Schema: schema,
		State:  model.NewStateManager(),
		Scaler: preprocessing.NewMinMaxScalerDefault(),
		Label:  preprocessing.NewPowerTransformer(),
	}
	for _, c := range schema.Ordinal {
		p.Ordinal = append(p.Ordinal, preprocessing.NewOrdinalEncoder(c.Categories...))
	}
	for range schema.Nominal {
		p.Nominal = append(p.Nominal, preprocessing.NewOneHotEncoder())
	}
	for range schema.Target {
		p.Target = append(p.Target, preprocessing.NewTargetEncoder())
	}
	for _, c := range schema.Functions {
		ft, err := preprocessing.NewFunctionTransformer(c.Func)
		if err != nil {
			return nil, errors.NewConfigurationError("schema.functions."+c.Name, c.Func,
				"must be one of "+strings.Join(preprocessing.ElementwiseFunctions(), ", "))
		}
		p.Functions = append(p.Functions, ft)
	}
	return p, nil
}

// SetLogger sets the logger used for stage records. It is not persisted.
func (p *Pipeline) SetLogger(l log.Logger) {
	p.logger = l
}

func (p *Pipeline) componentLogger() log.Logger {
	return log.OrDefault(p.logger, "pipeline")
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool {
	return p.State != nil && p.State.IsFitted()
}

// Fit learns every stage from the training features and the raw training
// labels. A fitted pipeline rejects a second Fit.
func (p *Pipeline) Fit(frame *dataset.Frame, labels []float64) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if err := p.State.RequireUnfitted("Pipeline"); err != nil {
		return err
	}
	if frame.Len() == 0 {
		return errors.NewModelError("Pipeline.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(labels) != frame.Len() {
		return errors.NewDimensionError("Pipeline.Fit", frame.Len(), len(labels), 0)
	}
	if err := frame.RequireColumns(p.Schema.Columns()...); err != nil {
		return err
	}

	logger := p.componentLogger().With(log.OperationKey, log.OperationFit, log.PhaseKey, log.PhasePreprocessing)
	start := time.Now()

	for i, c := range p.Schema.Ordinal {
		if err := p.fitEncoder(p.Ordinal[i], frame, c.Name, labels); err != nil {
			return err
		}
	}
	for i, c := range p.Schema.Nominal {
		if err := p.fitEncoder(p.Nominal[i], frame, c, labels); err != nil {
			return err
		}
	}
	for i, c := range p.Schema.Target {
		if err := p.fitEncoder(p.Target[i], frame, c, labels); err != nil {
			return err
		}
	}
	for i, c := range p.Schema.Functions {
		col, err := frame.FloatColumn(c.Name)
		if err != nil {
			return err
		}
		if err := p.Functions[i].Fit(mat.NewDense(len(col), 1, col)); err != nil {
			return errors.Wrapf(err, "stage %s", c.Name)
		}
	}

	raw, err := p.encode(frame)
	if err != nil {
		return err
	}
	if err := p.Scaler.Fit(raw); err != nil {
		return errors.Wrap(err, "stage scaling")
	}
	if err := p.Label.Fit(labels); err != nil {
		return errors.Wrap(err, "stage label power transform")
	}

	p.Names = p.outputNames()
	_, cols := raw.Dims()
	p.State.MarkFitted(cols, frame.Len())

	logger.Info("Pipeline fitted",
		log.SamplesKey, frame.Len(),
		log.FeaturesKey, cols,
		"lambda", p.Label.Lambda,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Pipeline) fitEncoder(enc model.CategoricalEncoder, frame *dataset.Frame, column string, labels []float64) error {
	values, err := frame.Column(column)
	if err != nil {
		return err
	}
	if err := enc.Fit(values, labels); err != nil {
		return errors.Wrapf(err, "stage %s", column)
	}
	p.componentLogger().Debug("Stage fitted", log.StageKey, column, log.ModelNameKey, encoderName(enc))
	return nil
}

func encoderName(enc model.CategoricalEncoder) string {
	switch enc.(type) {
	case *preprocessing.OrdinalEncoder:
		return "OrdinalEncoder"
	case *preprocessing.OneHotEncoder:
		return "OneHotEncoder"
	case *preprocessing.TargetEncoder:
		return "TargetEncoder"
	default:
		return "CategoricalEncoder"
	}
}

// Apply transforms features with the fitted stages. Categories unseen during
// Fit use each encoder's fallback, so Apply never fails on them. Extra columns
// (including the label) are ignored.
func (p *Pipeline) Apply(frame *dataset.Frame) (*mat.Dense, error) {
	if p.State == nil {
		return nil, errors.NewFitBeforeApplyError("Pipeline", "Apply")
	}
	if err := p.State.RequireFitted("Pipeline", "Apply"); err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, errors.NewModelError("Pipeline.Apply", "empty data", errors.ErrEmptyData)
	}
	raw, err := p.encode(frame)
	if err != nil {
		return nil, err
	}
	n, width := raw.Dims()
	if width != len(p.Names) {
		return nil, errors.NewInputShapeError("transform", []int{n, len(p.Names)}, []int{n, width})
	}
	scaled, err := p.Scaler.Transform(raw)
	if err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("Pipeline.Apply", scaled, n, width, 0); err != nil {
		return nil, err
	}
	return scaled.(*mat.Dense), nil
}

// encode runs every stage except scaling and stacks the blocks column-wise.
func (p *Pipeline) encode(frame *dataset.Frame) (*mat.Dense, error) {
	n := frame.Len()
	var blocks []mat.Matrix

	appendEncoded := func(enc model.CategoricalEncoder, column string) error {
		values, err := frame.Column(column)
		if err != nil {
			return err
		}
		block, err := enc.Transform(values)
		if err != nil {
			return err
		}
		if block != nil {
			blocks = append(blocks, block)
		}
		return nil
	}

	for i, c := range p.Schema.Ordinal {
		if err := appendEncoded(p.Ordinal[i], c.Name); err != nil {
			return nil, err
		}
	}
	for i, c := range p.Schema.Nominal {
		if err := appendEncoded(p.Nominal[i], c); err != nil {
			return nil, err
		}
	}
	for i, c := range p.Schema.Target {
		if err := appendEncoded(p.Target[i], c); err != nil {
			return nil, err
		}
	}
	for i, c := range p.Schema.Functions {
		col, err := frame.FloatColumn(c.Name)
		if err != nil {
			return nil, err
		}
		block, err := p.Functions[i].Transform(mat.NewDense(n, 1, col))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	for _, c := range p.Schema.Passthrough {
		col, err := frame.FloatColumn(c)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, mat.NewDense(n, 1, col))
	}

	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	if width == 0 {
		return nil, errors.NewValueError("Pipeline.encode", "no output columns")
	}

	out := mat.NewDense(n, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, n, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return out, nil
}

func (p *Pipeline) outputNames() []string {
	var names []string
	for i, c := range p.Schema.Ordinal {
		names = append(names, p.Ordinal[i].OutputNames(c.Name)...)
	}
	for i, c := range p.Schema.Nominal {
		names = append(names, p.Nominal[i].OutputNames(c)...)
	}
	for i, c := range p.Schema.Target {
		names = append(names, p.Target[i].OutputNames(c)...)
	}
	for _, c := range p.Schema.Functions {
		names = append(names, c.Func+"("+c.Name+")")
	}
	return append(names, p.Schema.Passthrough...)
}

// FeatureNames returns the output column names in matrix order.
func (p *Pipeline) FeatureNames() []string {
	out := make([]string, len(p.Names))
	copy(out, p.Names)
	return out
}

// TransformLabels applies the fitted label transform without re-fitting it.
func (p *Pipeline) TransformLabels(y []float64) ([]float64, error) {
	if err := p.State.RequireFitted("Pipeline", "TransformLabels"); err != nil {
		return nil, err
	}
	return p.Label.Transform(y)
}

// InverseLabels maps model outputs back to the natural label scale.
func (p *Pipeline) InverseLabels(x []float64) ([]float64, error) {
	if err := p.State.RequireFitted("Pipeline", "InverseLabels"); err != nil {
		return nil, err
	}
	return p.Label.InverseTransform(x)
}

// Save persists the fitted pipeline as a single gob artifact.
func (p *Pipeline) Save(path string) error {
	if err := p.State.RequireFitted("Pipeline", "Save"); err != nil {
		return err
	}
	return model.SaveModel(p, path)
}

// Load reads a pipeline written by Save.
func Load(path string) (*Pipeline, error) {
	var p Pipeline
	if err := model.LoadModel(&p, path); err != nil {
		return nil, err
	}
	if !p.IsFitted() {
		return nil, errors.NewDataAccessError("pipeline.Load", path, "artifact holds an unfitted pipeline", nil)
	}
	return &p, nil
}
