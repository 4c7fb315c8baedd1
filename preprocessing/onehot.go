package preprocessing

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// OneHotEncoder は名義カテゴリを指示変数に変換する
//
// 学習データのカテゴリを辞書順に並べ、DropFirst のとき先頭カテゴリの列を落とす。
// 未知のカテゴリは全ての列が 0 になる（エラーにはしない）。
type OneHotEncoder struct {
	model.BaseEstimator

	// DropFirst は先頭カテゴリの列を出力しない
	DropFirst bool

	// Categories は学習データに現れたカテゴリ（辞書順）
	Categories []string

	// Columns はカテゴリから出力列番号への写像。落とされたカテゴリは含まない
	Columns map[string]int
}

// NewOneHotEncoder creates a drop-first encoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{DropFirst: true}
}

// Fit learns the category set. y is ignored.
func (e *OneHotEncoder) Fit(values []string, _ []float64) error {
	if e.IsFitted() {
		return errors.NewValueError("OneHotEncoder.Fit", "already fitted")
	}
	if len(values) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]bool)
	for _, v := range values {
		seen[strings.TrimSpace(v)] = true
	}
	e.Categories = make([]string, 0, len(seen))
	for c := range seen {
		e.Categories = append(e.Categories, c)
	}
	sort.Strings(e.Categories)

	e.Columns = make(map[string]int, len(e.Categories))
	for i, c := range e.encoded() {
		e.Columns[c] = i
	}
	e.SetFitted()
	return nil
}

func (e *OneHotEncoder) encoded() []string {
	if e.DropFirst && len(e.Categories) > 0 {
		return e.Categories[1:]
	}
	return e.Categories
}

// Transform returns n_samples × n_outputs indicators. With DropFirst and a
// single training category there are no outputs and the result is nil.
func (e *OneHotEncoder) Transform(values []string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("OneHotEncoder", "Transform")
	}
	width := len(e.Columns)
	if width == 0 {
		return nil, nil
	}
	out := mat.NewDense(len(values), width, nil)
	for i, v := range values {
		if j, ok := e.Columns[strings.TrimSpace(v)]; ok {
			out.Set(i, j, 1)
		}
	}
	return out, nil
}

// OutputNames returns "<column>_<category>" for every emitted indicator.
func (e *OneHotEncoder) OutputNames(column string) []string {
	cats := e.encoded()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = column + "_" + c
	}
	return names
}

var _ model.CategoricalEncoder = (*OneHotEncoder)(nil)
