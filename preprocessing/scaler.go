package preprocessing

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/core/parallel"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

var _ model.Transformer = (*StandardScaler)(nil)

// parallelRows 以上の行数なら行ブロックごとに並列で変換する
const parallelRows = 4096

// minScale 未満の標準偏差は定数列とみなしスケール1にする
const minScale = 1e-8

// StandardScaler は数値列を平均0・分散1に標準化する
//
// 標準偏差は母標準偏差（ddof=0）。pipelineと一緒にgobで保存されるため
// フィールドは公開している。
type StandardScaler struct {
	model.BaseEstimator

	Mean      []float64
	Scale     []float64
	NFeatures int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler returns a scaler; withMean/withStd switch centering and scaling.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit learns per-column mean and population standard deviation.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := range s.Mean {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd && std >= minScale {
			s.Scale[j] = std
		}
	}

	s.SetFitted()
	return nil
}

// Transform returns (X - Mean) / Scale.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("StandardScaler.Transform", X, func(j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// FitTransform fits on X and returns its standardized copy.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("StandardScaler.InverseTransform", X, func(j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

func (s *StandardScaler) apply(op string, X mat.Matrix, f func(j int, v float64) float64) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", op)
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError(op, s.NFeatures, c, 1)
	}
	if r == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(r, c, nil)
	// 各ワーカーは自分の行範囲だけに書き込む
	parallel.ParallelizeWithThreshold(r, parallelRows, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, j, f(j, X.At(i, j)))
			}
		}
	})
	return out, nil
}
