package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n_samples × 1 の行列を返す）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	// GetParams はモデルのハイパーパラメータを返す
	GetParams() map[string]interface{}
}

// Regressor は回帰モデルのインターフェース
//
// Clone は同じハイパーパラメータを持つ未学習のインスタンスを返す。
// 交差検証の各foldやハイパーパラメータ探索の各試行は Clone したモデルを学習するため、
// 元のモデルの学習済み状態を共有しない。
type Regressor interface {
	Fitter
	Predictor
	ParameterGetter

	// Name はモデルの型名を返す（ログや成果物のメタデータに使用）
	Name() string

	// IsFitted はモデルが学習済みかどうかを返す
	IsFitted() bool

	// Clone は未学習の複製を返す
	Clone() Regressor
}
