// Package preprocessing provides the column transformers of the feature
// pipeline: categorical encoders, element-wise functions, range scaling and
// the Yeo-Johnson label transform.
package preprocessing

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// UnknownCategory is the rank produced for a value outside the declared
// order. Downstream stages treat it as an ordinary number, so it lands below
// rank 0 after scaling.
const UnknownCategory = -1

// OrdinalEncoder は宣言された順序に従ってカテゴリを 0..k-1 の順位に変換する
//
// 学習データから順序を推定することはない。宣言にない値は UnknownCategory になる。
type OrdinalEncoder struct {
	model.BaseEstimator

	// Categories は低い順に並べたカテゴリ
	Categories []string

	// Ranks はカテゴリから順位への写像 (Fit で構築)
	Ranks map[string]int
}

// NewOrdinalEncoder は順序付きカテゴリを受け取ってエンコーダを作成する
func NewOrdinalEncoder(categories ...string) *OrdinalEncoder {
	return &OrdinalEncoder{Categories: categories}
}

// Fit builds the rank table. y is ignored.
func (e *OrdinalEncoder) Fit(values []string, _ []float64) error {
	if e.IsFitted() {
		return errors.NewValueError("OrdinalEncoder.Fit", "already fitted")
	}
	if len(e.Categories) == 0 {
		return errors.NewValidationError("categories", "ordinal order must not be empty", e.Categories)
	}
	if len(values) == 0 {
		return errors.NewModelError("OrdinalEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	e.Ranks = make(map[string]int, len(e.Categories))
	for i, c := range e.Categories {
		c = strings.TrimSpace(c)
		if _, dup := e.Ranks[c]; dup {
			return errors.NewValidationError("categories", "duplicate category '"+c+"'", e.Categories)
		}
		e.Ranks[c] = i
	}
	e.SetFitted()
	return nil
}

// Transform returns one column of ranks.
func (e *OrdinalEncoder) Transform(values []string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("OrdinalEncoder", "Transform")
	}
	out := mat.NewDense(len(values), 1, nil)
	for i, v := range values {
		out.Set(i, 0, float64(e.Rank(v)))
	}
	return out, nil
}

// Rank returns the rank of v, or UnknownCategory.
func (e *OrdinalEncoder) Rank(v string) int {
	if r, ok := e.Ranks[strings.TrimSpace(v)]; ok {
		return r
	}
	return UnknownCategory
}

// OutputNames returns the column name unchanged.
func (e *OrdinalEncoder) OutputNames(column string) []string {
	return []string{column}
}

var _ model.CategoricalEncoder = (*OrdinalEncoder)(nil)
