// Package training selects, tunes, fits and evaluates the price regressor,
// and persists it together with its feature pipeline.
package training

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
	"github.com/YuminosukeSato/findhome/pipeline"
)

// Data is the model-ready form of a partition.
type Data struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	// YTrain holds power-transformed labels, the scale models are fit on.
	YTrain []float64
	// YTest holds natural-scale labels, the scale errors are reported on.
	YTest []float64

	Pipeline *pipeline.Pipeline
}

// PrepareData fits a fresh pipeline on the train partition and applies it to
// both partitions. label names the target column.
func PrepareData(p *dataset.Partition, schema pipeline.Schema, label string, logger log.Logger) (*Data, error) {
	if p == nil || p.Train == nil || p.Test == nil {
		return nil, errors.NewModelError("PrepareData", "missing partition", errors.ErrEmptyData)
	}
	trainLabels, err := p.Train.FloatColumn(label)
	if err != nil {
		return nil, err
	}
	testLabels, err := p.Test.FloatColumn(label)
	if err != nil {
		return nil, err
	}

	pl, err := pipeline.New(schema)
	if err != nil {
		return nil, err
	}
	pl.SetLogger(logger)
	if err := pl.Fit(p.Train.Without(label), trainLabels); err != nil {
		return nil, err
	}

	xTrain, err := pl.Apply(p.Train.Without(label))
	if err != nil {
		return nil, errors.Wrap(err, "apply pipeline to train partition")
	}
	xTest, err := pl.Apply(p.Test.Without(label))
	if err != nil {
		return nil, errors.Wrap(err, "apply pipeline to test partition")
	}
	yTrain, err := pl.TransformLabels(trainLabels)
	if err != nil {
		return nil, err
	}

	return &Data{
		XTrain:   xTrain,
		XTest:    xTest,
		YTrain:   yTrain,
		YTest:    testLabels,
		Pipeline: pl,
	}, nil
}

func (d *Data) validate(op string) error {
	if d == nil || d.XTrain == nil || d.XTest == nil || d.Pipeline == nil {
		return errors.NewModelError(op, "incomplete training data", errors.ErrEmptyData)
	}
	if r, _ := d.XTrain.Dims(); r != len(d.YTrain) {
		return errors.NewDimensionError(op, r, len(d.YTrain), 0)
	}
	if r, _ := d.XTest.Dims(); r != len(d.YTest) {
		return errors.NewDimensionError(op, r, len(d.YTest), 0)
	}
	return nil
}
