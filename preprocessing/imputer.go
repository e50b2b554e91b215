package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

var _ model.Transformer = (*SimpleImputer)(nil)

// Imputation strategies.
const (
	StrategyMedian   = "median"
	StrategyMean     = "mean"
	StrategyConstant = "constant"
)

// DefaultTextFill is the constant substituted for missing text cells.
const DefaultTextFill = "missing"

// SimpleImputer はNaNを列ごとの統計量で置き換える数値用の補完器
//
// 学習データで一度も値が観測されなかった列は統計量がNaNとなり、
// Transformの出力から除外される（scikit-learnと同じ挙動）。
type SimpleImputer struct {
	model.BaseEstimator

	Strategy   string
	FillValue  float64
	Statistics []float64
	NFeatures  int
}

// NewSimpleImputer は新しいSimpleImputerを作成する
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{Strategy: strategy}
}

// Fit は各列の補完値を計算する
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	switch s.Strategy {
	case StrategyMedian, StrategyMean, StrategyConstant:
	default:
		return errors.NewValueError("SimpleImputer.Fit", "unknown strategy '"+s.Strategy+"'")
	}

	s.NFeatures = c
	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		if s.Strategy == StrategyConstant {
			s.Statistics[j] = s.FillValue
			continue
		}
		observed := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		s.Statistics[j] = columnStatistic(s.Strategy, observed)
	}

	s.SetFitted()
	return nil
}

func columnStatistic(strategy string, observed []float64) float64 {
	if len(observed) == 0 {
		return math.NaN()
	}
	if strategy == StrategyMean {
		return stat.Mean(observed, nil)
	}
	sort.Float64s(observed)
	n := len(observed)
	if n%2 == 1 {
		return observed[n/2]
	}
	return (observed[n/2-1] + observed[n/2]) / 2
}

// Kept returns the input column indices that Transform outputs.
func (s *SimpleImputer) Kept() []int {
	kept := make([]int, 0, len(s.Statistics))
	for j, v := range s.Statistics {
		if !math.IsNaN(v) {
			kept = append(kept, j)
		}
	}
	return kept
}

// Transform はNaNを補完値で置き換え、値のない列を除外する
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("SimpleImputer", "Transform")
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("SimpleImputer.Transform", s.NFeatures, c, 1)
	}
	kept := s.Kept()
	if r == 0 || len(kept) == 0 {
		return nil, errors.NewModelError("SimpleImputer.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(r, len(kept), nil)
	for k, j := range kept {
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				v = s.Statistics[j]
			}
			out.Set(i, k, v)
		}
	}
	return out, nil
}

// FitTransform は学習と変換を続けて行う
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// FillText returns raw with every missing cell replaced by fill.
func FillText(raw []string, missing []bool, fill string) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		if missing[i] {
			out[i] = fill
		} else {
			out[i] = v
		}
	}
	return out
}
