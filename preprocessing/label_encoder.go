package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// LabelEncoder は分類の目的変数を 0..n_classes-1 のクラス番号に変換する
//
// テキスト列は文字列の辞書順、数値列は値の昇順でクラスを並べる。
// Decodeは元の型（stringまたはfloat64）でラベルを返す。
type LabelEncoder struct {
	model.BaseEstimator

	Kind    dataset.Kind
	Classes []string  // テキストラベル
	Values  []float64 // 数値ラベル
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit learns the classes from the non-missing cells of col.
func (e *LabelEncoder) Fit(col *dataset.Column) error {
	if col.Len() == 0 || col.CountMissing() == col.Len() {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Kind = col.Kind
	e.Classes, e.Values = nil, nil

	if col.Kind == dataset.Numeric {
		seen := make(map[float64]struct{})
		for i, v := range col.Values {
			if !col.IsMissing(i) {
				seen[v] = struct{}{}
			}
		}
		for v := range seen {
			e.Values = append(e.Values, v)
		}
		sort.Float64s(e.Values)
	} else {
		seen := make(map[string]struct{})
		for i, v := range col.Raw {
			if !col.IsMissing(i) {
				seen[v] = struct{}{}
			}
		}
		for v := range seen {
			e.Classes = append(e.Classes, v)
		}
		sort.Strings(e.Classes)
	}
	e.SetFitted()
	return nil
}

// NClasses returns the number of classes.
func (e *LabelEncoder) NClasses() int {
	if e.Kind == dataset.Numeric {
		return len(e.Values)
	}
	return len(e.Classes)
}

// Names returns the class labels as strings, in class-index order.
func (e *LabelEncoder) Names() []string {
	if e.Kind != dataset.Numeric {
		return e.Classes
	}
	names := make([]string, len(e.Values))
	for i, v := range e.Values {
		names[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return names
}

// Transform maps every cell of col to its class index. Missing cells and
// unseen labels are errors.
func (e *LabelEncoder) Transform(col *dataset.Column) ([]float64, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	out := make([]float64, col.Len())
	for i := range out {
		if col.IsMissing(i) {
			return nil, errors.NewValueError("LabelEncoder.Transform", "target contains missing values")
		}
		var k int
		var ok bool
		if e.Kind == dataset.Numeric {
			v := col.Float(i)
			k = sort.SearchFloat64s(e.Values, v)
			ok = k < len(e.Values) && e.Values[k] == v
		} else {
			v := col.Raw[i]
			k = sort.SearchStrings(e.Classes, v)
			ok = k < len(e.Classes) && e.Classes[k] == v
		}
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "y contains previously unseen label '"+col.Raw[i]+"'")
		}
		out[i] = float64(k)
	}
	return out, nil
}

// Decode returns the original label of class index k.
func (e *LabelEncoder) Decode(k int) any {
	if e.Kind == dataset.Numeric {
		return e.Values[k]
	}
	return e.Classes[k]
}
