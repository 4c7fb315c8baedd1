package model

import "gonum.org/v1/gonum/mat"

// Transformer は数値行列のデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// CategoricalEncoder は1つのカテゴリ列を数値列に変換するインターフェース
//
// 出力の列数は学習後に固定され、未知のカテゴリに対してもエラーにせず、
// 各エンコーダが定めるフォールバック値を返す。
type CategoricalEncoder interface {
	// Fit はカテゴリとラベルから変換パラメータを学習する（ラベルを使わないエンコーダは y を無視する）
	Fit(values []string, y []float64) error

	// Transform はカテゴリ列を n_samples × n_outputs の行列に変換する
	Transform(values []string) (*mat.Dense, error)

	// OutputNames は出力列の名前を返す
	OutputNames(column string) []string
}
