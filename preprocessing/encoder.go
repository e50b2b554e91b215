package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// OneHotEncoder はカテゴリ列を0/1の指示変数に展開する
//
// カテゴリは列ごとに辞書順でソートされる。学習時に見なかったカテゴリは
// 無視され、その列の出力はすべて0になる（handle_unknown="ignore"）。
type OneHotEncoder struct {
	model.BaseEstimator

	// Categories は入力列ごとのソート済みカテゴリ
	Categories [][]string
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{}
}

// Fit learns the categories of each column. columns[j][i] is row i of column j.
func (e *OneHotEncoder) Fit(columns [][]string) error {
	if len(columns) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Categories = make([][]string, len(columns))
	for j, col := range columns {
		seen := make(map[string]struct{}, len(col))
		for _, v := range col {
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[j] = cats
	}
	e.SetFitted()
	return nil
}

// categoryIndex returns the position of v among the sorted categories of column j.
func (e *OneHotEncoder) categoryIndex(j int, v string) (int, bool) {
	cats := e.Categories[j]
	k := sort.SearchStrings(cats, v)
	return k, k < len(cats) && cats[k] == v
}

// NOutputs returns the number of indicator columns Transform produces.
func (e *OneHotEncoder) NOutputs() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats)
	}
	return n
}

// Transform encodes columns into an n_rows × NOutputs indicator matrix.
func (e *OneHotEncoder) Transform(columns [][]string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(columns) != len(e.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(e.Categories), len(columns), 1)
	}
	rows := len(columns[0])
	width := e.NOutputs()
	if rows == 0 || width == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, width, nil)
	offset := 0
	for j, col := range columns {
		if len(col) != rows {
			return nil, errors.NewDimensionError("OneHotEncoder.Transform", rows, len(col), 0)
		}
		for i, v := range col {
			if k, ok := e.categoryIndex(j, v); ok {
				out.Set(i, offset+k, 1)
			}
		}
		offset += len(e.Categories[j])
	}
	return out, nil
}

// FeatureNames returns "<input>_<category>" for every output column.
func (e *OneHotEncoder) FeatureNames(inputs []string) []string {
	names := make([]string, 0, e.NOutputs())
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, inputs[j]+"_"+c)
		}
	}
	return names
}
