package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習と予測の両方を行うモデル
type Estimator interface {
	Fitter
	Predictor
	IsFitted() bool
}

// ProbabilityPredictor はクラス確率を返す分類器のインターフェース
type ProbabilityPredictor interface {
	// PredictProba は各クラスの確率 (n_samples × n_classes) を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// FeatureImportancer は特徴量重要度を公開するモデルのインターフェース
type FeatureImportancer interface {
	// FeatureImportances は合計が1になる不純度減少ベースの重要度を返す
	FeatureImportances() []float64
}
