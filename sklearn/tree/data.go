package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// Data は学習行列の列指向コピー
//
// ランダムフォレストの各木は同じDataを共有し、ブートストラップした
// 行インデックスだけを変えて学習する。Dataは学習中に変更されない。
type Data struct {
	Cols      [][]float64
	Y         []float64
	NSamples  int
	NFeatures int

	// Classes は分類用のソート済みラベル。Yはこの中のインデックスになる。
	Classes []float64
}

func newData(op string, X, y mat.Matrix) (*Data, error) {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != n {
		return nil, errors.NewDimensionError(op, n, yr, 0)
	}
	if yc != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}

	d := &Data{Cols: make([][]float64, p), Y: make([]float64, n), NSamples: n, NFeatures: p}
	for j := 0; j < p; j++ {
		d.Cols[j] = mat.Col(nil, j, X)
		for _, v := range d.Cols[j] {
			if math.IsNaN(v) {
				return nil, errors.NewValueError(op, "input X contains NaN")
			}
		}
	}
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) {
			return nil, errors.NewValueError(op, "input y contains NaN")
		}
		d.Y[i] = v
	}
	return d, nil
}

// NewRegressionData copies X (n × p) and y (n × 1) for regression trees.
func NewRegressionData(X, y mat.Matrix) (*Data, error) {
	return newData("NewRegressionData", X, y)
}

// NewClassificationData copies X and y and encodes y as indices into the
// sorted distinct labels.
func NewClassificationData(X, y mat.Matrix) (*Data, error) {
	d, err := newData("NewClassificationData", X, y)
	if err != nil {
		return nil, err
	}

	seen := make(map[float64]struct{})
	for _, v := range d.Y {
		seen[v] = struct{}{}
	}
	d.Classes = make([]float64, 0, len(seen))
	for v := range seen {
		d.Classes = append(d.Classes, v)
	}
	sort.Float64s(d.Classes)

	for i, v := range d.Y {
		d.Y[i] = float64(sort.SearchFloat64s(d.Classes, v))
	}
	return d, nil
}

// AllIndices returns 0..NSamples-1.
func (d *Data) AllIndices() []int {
	idx := make([]int, d.NSamples)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// rowsOf copies the rows of X after checking the feature count.
func rowsOf(op string, X mat.Matrix, nFeatures int) ([][]float64, error) {
	n, p := X.Dims()
	if p != nFeatures {
		return nil, errors.NewDimensionError(op, nFeatures, p, 1)
	}
	if n == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	return rows, nil
}
