package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// ColumnTransformer は列の型ごとに前処理を振り分ける
//
//   - 数値列: 中央値で補完 → 標準化（出力名 "num__<列名>"）
//   - テキスト列: 定数 "missing" で補完 → One-Hot（出力名 "cat__<列名>_<カテゴリ>"）
//
// 出力は数値ブロック、カテゴリブロックの順に並ぶ。
type ColumnTransformer struct {
	model.BaseEstimator

	// Input は学習時の特徴量スキーマ（予測時のレコード検証に使う）
	Input dataset.Schema

	NumericColumns     []string
	CategoricalColumns []string
	TextFill           string

	Imputer *SimpleImputer
	Scaler  *StandardScaler
	Encoder *OneHotEncoder

	FeatureNamesOut []string
}

// NewColumnTransformer は新しいColumnTransformerを作成する
func NewColumnTransformer() *ColumnTransformer {
	return &ColumnTransformer{TextFill: DefaultTextFill}
}

// Fit learns imputation values, scaling and categories from ds.
func (ct *ColumnTransformer) Fit(ds *dataset.Dataset, logger log.Logger) error {
	logger = log.OrNop(logger)
	if ds.NumCols() == 0 {
		return errors.NewValueError("ColumnTransformer.Fit", "no feature columns to train on")
	}
	if ds.NumRows() == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}

	ct.Input = ds.Schema()
	ct.NumericColumns, ct.CategoricalColumns = nil, nil
	for _, f := range ct.Input {
		if f.Kind == dataset.Numeric {
			ct.NumericColumns = append(ct.NumericColumns, f.Name)
		} else {
			ct.CategoricalColumns = append(ct.CategoricalColumns, f.Name)
		}
	}
	ct.Imputer, ct.Scaler, ct.Encoder = nil, nil, nil
	ct.FeatureNamesOut = nil

	if len(ct.NumericColumns) > 0 {
		X, err := numericBlock(ds, ct.NumericColumns)
		if err != nil {
			return err
		}
		ct.Imputer = NewSimpleImputer(StrategyMedian)
		if err := ct.Imputer.Fit(X); err != nil {
			return err
		}
		kept := ct.Imputer.Kept()
		if len(kept) < len(ct.NumericColumns) {
			skipped := make([]string, 0, len(ct.NumericColumns)-len(kept))
			for j, v := range ct.Imputer.Statistics {
				if math.IsNaN(v) {
					skipped = append(skipped, ct.NumericColumns[j])
				}
			}
			logger.Warn("Skipping features without any observed values", log.ColumnsKey, skipped)
		}
		if len(kept) > 0 {
			imputed, err := ct.Imputer.Transform(X)
			if err != nil {
				return err
			}
			ct.Scaler = NewStandardScalerDefault()
			if err := ct.Scaler.Fit(imputed); err != nil {
				return err
			}
			for _, j := range kept {
				ct.FeatureNamesOut = append(ct.FeatureNamesOut, "num__"+ct.NumericColumns[j])
			}
		}
	}

	if len(ct.CategoricalColumns) > 0 {
		cols, err := textBlock(ds, ct.CategoricalColumns, ct.TextFill)
		if err != nil {
			return err
		}
		ct.Encoder = NewOneHotEncoder()
		if err := ct.Encoder.Fit(cols); err != nil {
			return err
		}
		for _, name := range ct.Encoder.FeatureNames(ct.CategoricalColumns) {
			ct.FeatureNamesOut = append(ct.FeatureNamesOut, "cat__"+name)
		}
	}

	if len(ct.FeatureNamesOut) == 0 {
		return errors.NewValueError("ColumnTransformer.Fit", "no usable features after preprocessing")
	}

	logger.Debug("Preprocessor fitted",
		log.ModelNameKey, "ColumnTransformer",
		log.NumericFeaturesKey, ct.NumericColumns,
		log.CategoricalFeaturesKey, ct.CategoricalColumns,
		log.FeaturesKey, len(ct.FeatureNamesOut),
	)
	ct.SetFitted()
	return nil
}

// Transform maps ds to the learned feature space. Columns are matched by
// name; extra columns are ignored.
func (ct *ColumnTransformer) Transform(ds *dataset.Dataset) (*mat.Dense, error) {
	if !ct.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	rows := ds.NumRows()
	if rows == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, len(ct.FeatureNamesOut), nil)
	offset := 0

	if ct.Scaler != nil {
		X, err := numericBlock(ds, ct.NumericColumns)
		if err != nil {
			return nil, err
		}
		imputed, err := ct.Imputer.Transform(X)
		if err != nil {
			return nil, err
		}
		scaled, err := ct.Scaler.Transform(imputed)
		if err != nil {
			return nil, err
		}
		_, c := scaled.Dims()
		out.Slice(0, rows, 0, c).(*mat.Dense).Copy(scaled)
		offset = c
	}

	if ct.Encoder != nil {
		cols, err := textBlock(ds, ct.CategoricalColumns, ct.TextFill)
		if err != nil {
			return nil, err
		}
		encoded, err := ct.Encoder.Transform(cols)
		if err != nil {
			return nil, err
		}
		_, c := encoded.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(encoded)
	}

	return out, nil
}

// FitTransform fits on ds and returns its transformed matrix.
func (ct *ColumnTransformer) FitTransform(ds *dataset.Dataset, logger log.Logger) (*mat.Dense, error) {
	if err := ct.Fit(ds, logger); err != nil {
		return nil, err
	}
	return ct.Transform(ds)
}

// GetFeatureNamesOut returns the output feature names.
func (ct *ColumnTransformer) GetFeatureNamesOut() []string {
	return ct.FeatureNamesOut
}

// numericBlock gathers the named columns as a matrix with NaN for missing.
// A text column in a numeric slot is parsed cell by cell.
func numericBlock(ds *dataset.Dataset, names []string) (*mat.Dense, error) {
	rows := ds.NumRows()
	X := mat.NewDense(rows, len(names), nil)
	for j, name := range names {
		col, ok := ds.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError(name, ds.Names())
		}
		if col.Kind == dataset.Numeric {
			X.SetCol(j, col.Values)
			continue
		}
		parsed := dataset.InferColumn(name, col.Raw, 1, nil)
		if parsed.Kind != dataset.Numeric {
			return nil, errors.NewValueError("ColumnTransformer", "column '"+name+"' must be numeric")
		}
		X.SetCol(j, parsed.Values)
	}
	return X, nil
}

// textBlock gathers the named columns as strings with missing cells filled.
func textBlock(ds *dataset.Dataset, names []string, fill string) ([][]string, error) {
	cols := make([][]string, len(names))
	for j, name := range names {
		col, ok := ds.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError(name, ds.Names())
		}
		cols[j] = FillText(col.Raw, col.Missing, fill)
	}
	return cols, nil
}
