package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

var _ model.Estimator = (*DecisionTreeRegressor)(nil)

// DecisionTreeRegressor は二乗誤差を最小化する回帰木
type DecisionTreeRegressor struct {
	model.BaseEstimator
	params

	tree *Tree
}

// NewDecisionTreeRegressor returns a regressor with squared error and no depth limit.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{params: defaultParams(CriterionSquaredError)}
	for _, opt := range opts {
		opt(&dt.params)
	}
	return dt
}

// Fit builds the tree from X (n × p) and targets y (n × 1).
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	d, err := NewRegressionData(X, y)
	if err != nil {
		return err
	}
	return dt.FitSample(d, d.AllIndices())
}

// FitSample builds the tree from the rows idx of d.
func (dt *DecisionTreeRegressor) FitSample(d *Data, idx []int) error {
	if err := dt.params.validate("DecisionTreeRegressor.Fit", CriterionSquaredError); err != nil {
		return err
	}
	if len(idx) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	dt.tree = grow(dt.params, d, idx, 0)
	dt.SetFitted()
	return nil
}

// Predict returns the leaf mean per row as an n × 1 matrix.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	rows, err := rowsOf("DecisionTreeRegressor.Predict", X, dt.tree.NFeatures)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(rows), 1, nil)
	for i, row := range rows {
		out.Set(i, 0, dt.tree.Value(row)[0])
	}
	return out, nil
}

// Score returns R² on X and y, or 0 when prediction fails.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := pred.Dims()
	mean := 0.0
	for i := 0; i < n; i++ {
		mean += y.At(i, 0)
	}
	mean /= float64(n)
	var rss, tss float64
	for i := 0; i < n; i++ {
		t := y.At(i, 0)
		rss += (t - pred.At(i, 0)) * (t - pred.At(i, 0))
		tss += (t - mean) * (t - mean)
	}
	if tss == 0 {
		if rss == 0 {
			return 1
		}
		return 0
	}
	return 1 - rss/tss
}

// Tree returns the fitted tree structure.
func (dt *DecisionTreeRegressor) Tree() *Tree { return dt.tree }

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return dt.tree.Importances
}

// FeatureImportances は GetFeatureImportances の別名
func (dt *DecisionTreeRegressor) FeatureImportances() []float64 { return dt.GetFeatureImportances() }

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.NLeaves()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} { return dt.params.getParams() }

// SetParams updates hyperparameters; it does not refit.
func (dt *DecisionTreeRegressor) SetParams(values map[string]interface{}) error {
	return dt.params.setParams(values)
}
