// Package linear_model は線形回帰モデルを提供する
//
// 評価時の比較対象（ベースライン）として、木モデルの誤差が線形モデルより
// どれだけ小さいかを確認するために使う。
package linear_model

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/findhome/core/model"
	"github.com/YuminosukeSato/findhome/metrics"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Ridge はL2正則化付きの最小二乗線形回帰
//
// 正規方程式 (XᵀX + αI)β = Xᵀy を中心化したデータに対してコレスキー分解で解く。
// 切片は正則化しない。α > 0 であれば共線な特徴量（one-hot列など）でも解が一意に定まる。
type Ridge struct {
	model.BaseEstimator

	// Alpha は正則化の強さ（0以上）
	Alpha float64

	Coef      []float64
	Intercept float64
	NFeatures int
}

// RidgeOption は設定オプション
type RidgeOption func(*Ridge)

// WithAlpha は正則化パラメータを設定
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) {
		r.Alpha = alpha
	}
}

// NewRidge は新しいRidgeモデルを作成（デフォルト α=1.0）
func NewRidge(opts ...RidgeOption) *Ridge {
	r := &Ridge{Alpha: 1.0}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit はモデルを訓練データで学習
func (r *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be >= 0", r.Alpha)
	}
	labels, err := metrics.Values(y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("Ridge.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != len(labels) {
		return errors.NewDimensionError("Ridge.Fit", rows, len(labels), 0)
	}

	// 列ごとの平均で中心化
	means := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(labels, nil)

	Xc := mat.NewDense(rows, cols, nil)
	yc := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			Xc.Set(i, j, X.At(i, j)-means[j])
		}
		yc.SetVec(i, labels[i]-yMean)
	}

	gram := mat.NewSymDense(cols, nil)
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(Xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return errors.NewModelError("Ridge.Fit", "singular normal equations", errors.ErrSingularMatrix)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return errors.Wrap(err, "solve normal equations")
	}

	r.Coef = make([]float64, cols)
	r.Intercept = yMean
	for j := range r.Coef {
		r.Coef[j] = beta.AtVec(j)
		r.Intercept -= r.Coef[j] * means[j]
	}
	if err := errors.CheckNumericalStability("Ridge.Fit", r.Coef, 0); err != nil {
		return err
	}
	r.NFeatures = cols
	r.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewFitBeforeApplyError("Ridge", "Predict")
	}
	rows, cols := X.Dims()
	if cols != r.NFeatures {
		return nil, errors.NewDimensionError("Ridge.Predict", r.NFeatures, cols, 1)
	}
	out := mat.NewDense(rows, 1, nil)
	coef := mat.NewVecDense(cols, r.Coef)
	var pred mat.VecDense
	pred.MulVec(X, coef)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, pred.AtVec(i)+r.Intercept)
	}
	return out, nil
}

// GetParams はハイパーパラメータを返す
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{"alpha": r.Alpha}
}

// Name はモデル名を返す
func (r *Ridge) Name() string { return "Ridge" }

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (r *Ridge) Clone() model.Regressor {
	return NewRidge(WithAlpha(r.Alpha))
}
