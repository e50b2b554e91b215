// Package pipeline は前処理と推定器を1つの保存可能なモデルにまとめる
//
// Pipelineは学習時の特徴量スキーマ、ColumnTransformer、ランダムフォレスト、
// 分類時のラベル変換を保持する。encoding/gobで1ファイルに保存され、
// predictコマンドとHTTPサーバーはこのファイルだけから予測できる。
package pipeline

import (
	"encoding/gob"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/interpreter"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/preprocessing"
	"github.com/YuminosukeSato/tabml/sklearn/ensemble"
)

// FormatVersion は保存形式のバージョン。読み込み時に異なれば警告する。
const FormatVersion = "1"

func init() {
	gob.Register(&ensemble.RandomForestRegressor{})
	gob.Register(&ensemble.RandomForestClassifier{})
}

// Pipeline は ColumnTransformer → 推定器 の学習済みモデル
type Pipeline struct {
	Version      string
	Target       string
	Problem      interpreter.ProblemType
	Preprocessor *preprocessing.ColumnTransformer
	Estimator    model.Estimator
	Labels       *preprocessing.LabelEncoder
}

// New returns an unfitted pipeline around estimator.
func New(problem interpreter.ProblemType, target string, estimator model.Estimator) *Pipeline {
	return &Pipeline{
		Version:      FormatVersion,
		Target:       target,
		Problem:      problem,
		Preprocessor: preprocessing.NewColumnTransformer(),
		Estimator:    estimator,
	}
}

// Fit fits the preprocessor on features and the estimator on the
// transformed matrix. For classification the target is label-encoded first.
func (p *Pipeline) Fit(features *dataset.Dataset, target *dataset.Column, logger log.Logger) error {
	if features.NumRows() != target.Len() {
		return errors.NewDimensionError("Pipeline.Fit", features.NumRows(), target.Len(), 0)
	}
	y, err := p.encodeTarget(target, true)
	if err != nil {
		return err
	}
	X, err := p.Preprocessor.FitTransform(features, logger)
	if err != nil {
		return err
	}
	if err := p.Estimator.Fit(X, mat.NewDense(len(y), 1, y)); err != nil {
		return errors.Wrap(err, "fit estimator")
	}
	return nil
}

// EncodeTarget returns the target as the estimator sees it: class indices
// for classification, raw values for regression.
func (p *Pipeline) EncodeTarget(target *dataset.Column) ([]float64, error) {
	return p.encodeTarget(target, false)
}

func (p *Pipeline) encodeTarget(target *dataset.Column, fit bool) ([]float64, error) {
	if p.Problem == interpreter.Classification {
		if fit {
			p.Labels = preprocessing.NewLabelEncoder()
			if err := p.Labels.Fit(target); err != nil {
				return nil, err
			}
		}
		if p.Labels == nil {
			return nil, errors.NewNotFittedError("Pipeline", "EncodeTarget")
		}
		return p.Labels.Transform(target)
	}

	if target.Kind != dataset.Numeric {
		return nil, errors.NewValueError("Pipeline.Fit", "regression target '"+target.Name+"' must be numeric")
	}
	y := make([]float64, target.Len())
	for i := range y {
		if target.IsMissing(i) {
			return nil, errors.NewValueError("Pipeline.Fit", "target contains missing values")
		}
		y[i] = target.Float(i)
	}
	return y, nil
}

// PredictEncoded returns raw estimator output: class indices for
// classification, values for regression.
func (p *Pipeline) PredictEncoded(ds *dataset.Dataset) ([]float64, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	X, err := p.Preprocessor.Transform(ds)
	if err != nil {
		return nil, err
	}
	pred, err := p.Estimator.Predict(X)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// Predict returns one prediction per row, decoded to the original label
// type for classification (string or float64).
func (p *Pipeline) Predict(ds *dataset.Dataset) ([]any, error) {
	raw, err := p.PredictEncoded(ds)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(raw))
	for i, v := range raw {
		if p.Problem == interpreter.Classification {
			out[i] = p.Labels.Decode(int(v))
		} else {
			out[i] = v
		}
	}
	return out, nil
}

// PredictRecord predicts a single JSON record. Every training feature must
// be present; extra keys are ignored.
func (p *Pipeline) PredictRecord(record map[string]any) (any, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "PredictRecord")
	}
	ds, err := dataset.FromRecord(record, p.Preprocessor.Input)
	if err != nil {
		return nil, err
	}
	out, err := p.Predict(ds)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// IsFitted reports whether both stages are fitted.
func (p *Pipeline) IsFitted() bool {
	return p.Preprocessor != nil && p.Preprocessor.IsFitted() &&
		p.Estimator != nil && p.Estimator.IsFitted()
}

// Features returns the input feature schema.
func (p *Pipeline) Features() dataset.Schema {
	if p.Preprocessor == nil {
		return nil
	}
	return p.Preprocessor.Input
}

// ClassNames returns the class labels as strings, or nil for regression.
func (p *Pipeline) ClassNames() []string {
	if p.Labels == nil {
		return nil
	}
	return p.Labels.Names()
}

// FeatureImportances maps each transformed feature name to its importance.
// It returns nil when the estimator does not expose importances.
func (p *Pipeline) FeatureImportances() map[string]float64 {
	fi, ok := p.Estimator.(model.FeatureImportancer)
	if !ok {
		return nil
	}
	imp := fi.FeatureImportances()
	names := p.Preprocessor.GetFeatureNamesOut()
	out := make(map[string]float64, len(names))
	for j, name := range names {
		if j < len(imp) {
			out[name] = imp[j]
		}
	}
	return out
}

// Save writes the pipeline to path with gob.
func (p *Pipeline) Save(path string) error {
	return model.SaveModel(p, path)
}

// Encode writes the gob encoding of the pipeline to w.
func (p *Pipeline) Encode(w io.Writer) error {
	return model.SaveModelToWriter(p, w)
}

// Load reads a pipeline written by Save. A format version mismatch is
// logged as a warning, not an error.
func Load(path string, logger log.Logger) (*Pipeline, error) {
	logger = log.OrNop(logger)
	var p Pipeline
	if err := model.LoadModel(&p, path); err != nil {
		return nil, err
	}
	if p.Version != FormatVersion {
		logger.Warn("Model was saved with a different format version",
			log.ModelPathKey, path,
			"model.version", p.Version,
			"model.expected_version", FormatVersion,
		)
	}
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Load")
	}
	return &p, nil
}
