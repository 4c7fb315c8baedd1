// Package metrics implements regression error and goodness-of-fit scores.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

func validate(op string, yTrue, yPred []float64) error {
	n := len(yTrue)
	if n == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != n {
		return errors.NewDimensionError(op, n, len(yPred), 0)
	}
	// 予測値に NaN/Inf があればスコアは意味を持たない
	return errors.CheckNumericalStability(op, yPred, 0)
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := validate("MSE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := validate("MAE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する。平均予測より悪いモデルでは負になる
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := validate("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	var yMean float64
	for _, v := range yTrue {
		yMean += v
	}
	yMean /= float64(len(yTrue))

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	// 全変動が0の場合（すべてのyTrueが同じ値）
	if tss == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("R2Score", "yTrue has no variance", math.NaN()))
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrue が 0 の行は無視する
func MAPE(yTrue, yPred []float64) (float64, error) {
	if err := validate("MAPE", yTrue, yPred); err != nil {
		return 0, err
	}

	var sum float64
	valid := 0
	for i, v := range yTrue {
		if v != 0 {
			sum += math.Abs(v-yPred[i]) / math.Abs(v)
			valid++
		}
	}
	if valid == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// Values flattens an n×1 prediction matrix or a vector into a slice.
func Values(m mat.Matrix) ([]float64, error) {
	if v, ok := m.(mat.Vector); ok {
		out := make([]float64, v.Len())
		for i := range out {
			out[i] = v.AtVec(i)
		}
		return out, nil
	}
	r, c := m.Dims()
	if c != 1 {
		return nil, errors.NewValueError("Values", "must be a column vector (n×1 matrix)")
	}
	out := make([]float64, r)
	for i := range out {
		out[i] = m.At(i, 0)
	}
	return out, nil
}
