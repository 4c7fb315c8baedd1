package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// λ values closer than this to 0 or 2 use the logarithmic branch.
const lambdaTolerance = 1e-12

// PowerTransformer はラベルを Yeo-Johnson 変換で正規分布に近づける
//
// λ は学習ラベルに対する対数尤度の最大化で推定する。標準化は行わない。
// InverseTransform は Transform の逆関数で、予測値を元のスケールに戻すのに使う。
type PowerTransformer struct {
	model.BaseEstimator

	// Lambda は推定された変換パラメータ
	Lambda float64
}

// NewPowerTransformer creates an unfitted Yeo-Johnson transformer.
func NewPowerTransformer() *PowerTransformer {
	return &PowerTransformer{}
}

// Fit estimates λ by maximum likelihood.
func (p *PowerTransformer) Fit(y []float64) error {
	if p.IsFitted() {
		return errors.NewValueError("PowerTransformer.Fit", "already fitted")
	}
	if len(y) < 2 {
		return errors.NewModelError("PowerTransformer.Fit", "at least two labels are required", errors.ErrEmptyData)
	}
	if err := errors.CheckNumericalStability("PowerTransformer.Fit", y, 0); err != nil {
		return err
	}
	if stat.PopVariance(y, nil) == 0 {
		return errors.NewValueError("PowerTransformer.Fit", "labels are constant, lambda is undefined")
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			llf := yeoJohnsonLogLikelihood(y, x[0])
			if math.IsNaN(llf) || math.IsInf(llf, 0) {
				return math.MaxFloat64
			}
			return -llf
		},
	}
	result, err := optimize.Minimize(problem, []float64{1.0}, &optimize.Settings{
		Converger: &optimize.FunctionConverge{Absolute: 1e-10, Iterations: 50},
	}, &optimize.NelderMead{})
	if err != nil {
		return errors.Wrap(err, "findhome: PowerTransformer.Fit: lambda search failed")
	}
	if result.Status != optimize.FunctionConvergence && result.Status != optimize.Success {
		errors.Warn(errors.NewConvergenceWarning("PowerTransformer", result.Stats.MajorIterations,
			fmt.Sprintf("lambda search stopped with status %v", result.Status)))
	}
	if err := errors.CheckScalar("PowerTransformer.Fit", result.X[0], result.Stats.MajorIterations); err != nil {
		return err
	}

	p.Lambda = result.X[0]
	p.SetFitted()
	return nil
}

// Transform applies the forward Yeo-Johnson transform.
func (p *PowerTransformer) Transform(y []float64) ([]float64, error) {
	if !p.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("PowerTransformer", "Transform")
	}
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = yeoJohnson(v, p.Lambda)
	}
	return out, nil
}

// InverseTransform maps transformed values back to the label scale. Values
// outside the image of the forward transform come back as NaN.
func (p *PowerTransformer) InverseTransform(x []float64) ([]float64, error) {
	if !p.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("PowerTransformer", "InverseTransform")
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = yeoJohnsonInverse(v, p.Lambda)
	}
	return out, nil
}

// GetParams returns the fitted λ.
func (p *PowerTransformer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"method": "yeo-johnson",
		"lambda": p.Lambda,
	}
}

func yeoJohnson(y, lambda float64) float64 {
	if y >= 0 {
		if math.Abs(lambda) < lambdaTolerance {
			return math.Log1p(y)
		}
		// ((y+1)^λ - 1) / λ
		return math.Expm1(lambda*math.Log1p(y)) / lambda
	}
	if math.Abs(lambda-2) < lambdaTolerance {
		return -math.Log1p(-y)
	}
	// -((1-y)^(2-λ) - 1) / (2-λ)
	return -math.Expm1((2-lambda)*math.Log1p(-y)) / (2 - lambda)
}

func yeoJohnsonInverse(x, lambda float64) float64 {
	if x >= 0 {
		if math.Abs(lambda) < lambdaTolerance {
			return math.Expm1(x)
		}
		// (xλ + 1)^(1/λ) - 1
		return math.Expm1(math.Log1p(x*lambda) / lambda)
	}
	if math.Abs(lambda-2) < lambdaTolerance {
		return -math.Expm1(-x)
	}
	// 1 - (1 - (2-λ)x)^(1/(2-λ))
	return -math.Expm1(math.Log1p(-(2-lambda)*x) / (2 - lambda))
}

// yeoJohnsonLogLikelihood is the profile log-likelihood of λ under a normal
// model of the transformed data.
func yeoJohnsonLogLikelihood(y []float64, lambda float64) float64 {
	n := float64(len(y))
	yt := make([]float64, len(y))
	jacobian := 0.0
	for i, v := range y {
		yt[i] = yeoJohnson(v, lambda)
		jacobian += math.Copysign(math.Log1p(math.Abs(v)), v)
	}
	variance := stat.PopVariance(yt, nil)
	if variance <= 0 {
		return math.Inf(-1)
	}
	return -n/2*math.Log(variance) + (lambda-1)*jacobian
}
