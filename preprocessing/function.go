package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Element-wise functions available to FunctionTransformer, by name. Only the
// name is persisted, so a loaded pipeline resolves the same function.
var elementwise = map[string]func(float64) float64{
	"cbrt":  math.Cbrt,
	"log1p": math.Log1p,
	"sqrt":  math.Sqrt,
}

// ElementwiseFunctions returns the names accepted by NewFunctionTransformer.
func ElementwiseFunctions() []string {
	names := make([]string, 0, len(elementwise))
	for n := range elementwise {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FunctionTransformer は各要素に固定の関数を適用する。学習するパラメータはない
type FunctionTransformer struct {
	model.BaseEstimator

	// Func は関数名 ("cbrt" など)
	Func string
}

// NewFunctionTransformer creates a transformer applying the named function.
func NewFunctionTransformer(name string) (*FunctionTransformer, error) {
	if _, ok := elementwise[name]; !ok {
		return nil, errors.NewValidationError("func", "unknown element-wise function", name)
	}
	return &FunctionTransformer{Func: name}, nil
}

// Fit only validates the input.
func (t *FunctionTransformer) Fit(X mat.Matrix) error {
	if _, ok := elementwise[t.Func]; !ok {
		return errors.NewValidationError("func", "unknown element-wise function", t.Func)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("FunctionTransformer.Fit", "empty data", errors.ErrEmptyData)
	}
	t.SetFitted()
	return nil
}

// Transform applies the function to every element.
func (t *FunctionTransformer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !t.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("FunctionTransformer", "Transform")
	}
	fn := elementwise[t.Func]
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return fn(v) }, X)
	return out, nil
}

// FitTransform fits and transforms X.
func (t *FunctionTransformer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := t.Fit(X); err != nil {
		return nil, err
	}
	return t.Transform(X)
}

var _ model.Transformer = (*FunctionTransformer)(nil)
