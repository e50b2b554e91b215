package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

var (
	_ model.Estimator            = (*DecisionTreeClassifier)(nil)
	_ model.ProbabilityPredictor = (*DecisionTreeClassifier)(nil)
)

// DecisionTreeClassifier はCARTによる分類木
//
// 使用例:
//
//	dt := tree.NewDecisionTreeClassifier(tree.WithMaxDepth(5))
//	if err := dt.Fit(X, y); err != nil {
//	    return err
//	}
//	pred, err := dt.Predict(XTest)
type DecisionTreeClassifier struct {
	model.BaseEstimator
	params

	tree      *Tree
	classes_  []float64
	nClasses_ int
}

// NewDecisionTreeClassifier returns a classifier with gini impurity and no depth limit.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{params: defaultParams(CriterionGini)}
	for _, opt := range opts {
		opt(&dt.params)
	}
	return dt
}

// Fit builds the tree from X (n × p) and labels y (n × 1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	d, err := NewClassificationData(X, y)
	if err != nil {
		return err
	}
	return dt.FitSample(d, d.AllIndices())
}

// FitSample builds the tree from the rows idx of d. idx may contain
// duplicates (bootstrap samples). Class labels are taken from d.Classes,
// so every tree fitted on the same d shares the same probability columns.
func (dt *DecisionTreeClassifier) FitSample(d *Data, idx []int) error {
	if err := dt.params.validate("DecisionTreeClassifier.Fit", CriterionGini, CriterionEntropy); err != nil {
		return err
	}
	if len(d.Classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "data has no class labels")
	}
	if len(idx) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}

	dt.classes_ = append([]float64(nil), d.Classes...)
	dt.nClasses_ = len(d.Classes)
	dt.tree = grow(dt.params, d, idx, dt.nClasses_)
	dt.SetFitted()
	return nil
}

// PredictProba returns an n × nClasses matrix of class probabilities.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}
	rows, err := rowsOf("DecisionTreeClassifier.PredictProba", X, dt.tree.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(rows), dt.nClasses_, nil)
	for i, row := range rows {
		out.SetRow(i, dt.tree.Value(row))
	}
	return out, nil
}

// Predict returns the most probable class label per row as an n × 1 matrix.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Predict")
	}
	rows, err := rowsOf("DecisionTreeClassifier.Predict", X, dt.tree.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(rows), 1, nil)
	for i, row := range rows {
		out.Set(i, 0, dt.classes_[argmax(dt.tree.Value(row))])
	}
	return out, nil
}

// Score returns the mean accuracy on X and y, or 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := pred.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []float64 { return dt.classes_ }

// Tree returns the fitted tree structure.
func (dt *DecisionTreeClassifier) Tree() *Tree { return dt.tree }

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return dt.tree.Importances
}

// FeatureImportances は GetFeatureImportances の別名
func (dt *DecisionTreeClassifier) FeatureImportances() []float64 { return dt.GetFeatureImportances() }

// GetDepth returns the depth of the fitted tree (root only = 0).
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.NLeaves()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} { return dt.params.getParams() }

// SetParams updates hyperparameters; it does not refit.
func (dt *DecisionTreeClassifier) SetParams(values map[string]interface{}) error {
	return dt.params.setParams(values)
}

func argmax(v []float64) int {
	best := 0
	for k := 1; k < len(v); k++ {
		if v[k] > v[best] {
			best = k
		}
	}
	return best
}
