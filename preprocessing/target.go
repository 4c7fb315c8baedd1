package preprocessing

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Default smoothing of TargetEncoder.
const (
	DefaultMinSamplesLeaf = 20
	DefaultSmoothing      = 10.0
)

// TargetEncoder はカテゴリを学習ラベルの平滑化平均に置き換える
//
// カテゴリ c の値は
//
//	w = 1 / (1 + exp(-(n_c - MinSamplesLeaf) / Smoothing))
//	enc(c) = prior*(1-w) + mean_c*w
//
// で、prior は全体平均。出現回数 1 のカテゴリは prior になる。
// 未知のカテゴリも prior になる。乱数は使わない。
type TargetEncoder struct {
	model.BaseEstimator

	MinSamplesLeaf int
	Smoothing      float64

	// Prior は学習ラベルの全体平均
	Prior float64

	// Encoding はカテゴリから平滑化平均への写像
	Encoding map[string]float64
}

// NewTargetEncoder creates an encoder with the default smoothing.
func NewTargetEncoder() *TargetEncoder {
	return &TargetEncoder{MinSamplesLeaf: DefaultMinSamplesLeaf, Smoothing: DefaultSmoothing}
}

// Fit learns per-category statistics from values and the raw label y.
func (e *TargetEncoder) Fit(values []string, y []float64) error {
	if e.IsFitted() {
		return errors.NewValueError("TargetEncoder.Fit", "already fitted")
	}
	if len(values) == 0 {
		return errors.NewModelError("TargetEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != len(values) {
		return errors.NewDimensionError("TargetEncoder.Fit", len(values), len(y), 0)
	}
	if e.Smoothing <= 0 {
		return errors.NewValidationError("smoothing", "must be positive", e.Smoothing)
	}
	if err := errors.CheckNumericalStability("TargetEncoder.Fit", y, 0); err != nil {
		return err
	}

	type stat struct {
		sum float64
		n   int
	}
	stats := make(map[string]*stat)
	total := 0.0
	for i, v := range values {
		v = strings.TrimSpace(v)
		s, ok := stats[v]
		if !ok {
			s = &stat{}
			stats[v] = s
		}
		s.sum += y[i]
		s.n++
		total += y[i]
	}
	e.Prior = total / float64(len(y))

	e.Encoding = make(map[string]float64, len(stats))
	for c, s := range stats {
		if s.n == 1 {
			e.Encoding[c] = e.Prior
			continue
		}
		w := 1 / (1 + math.Exp(-(float64(s.n)-float64(e.MinSamplesLeaf))/e.Smoothing))
		e.Encoding[c] = e.Prior*(1-w) + s.sum/float64(s.n)*w
	}
	e.SetFitted()
	return nil
}

// Transform returns one column of encoded values.
func (e *TargetEncoder) Transform(values []string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("TargetEncoder", "Transform")
	}
	out := mat.NewDense(len(values), 1, nil)
	for i, v := range values {
		out.Set(i, 0, e.Value(v))
	}
	return out, nil
}

// Value returns the encoding of v, or the prior for unseen categories.
func (e *TargetEncoder) Value(v string) float64 {
	if enc, ok := e.Encoding[strings.TrimSpace(v)]; ok {
		return enc
	}
	return e.Prior
}

// OutputNames returns the column name unchanged.
func (e *TargetEncoder) OutputNames(column string) []string {
	return []string{column}
}

var _ model.CategoricalEncoder = (*TargetEncoder)(nil)
