package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/core/parallel"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/tree"
)

var _ model.Estimator = (*RandomForestRegressor)(nil)

// RandomForestRegressor は回帰木の平均で予測するランダムフォレスト
//
// デフォルトは100本、ブートストラップあり、全特徴量を分割候補にする
// （scikit-learn >= 1.1 の max_features=1.0 と同じ）。
type RandomForestRegressor struct {
	model.BaseEstimator
	Params

	Trees        []*tree.DecisionTreeRegressor
	NFeatures    int
	Importances_ []float64
}

// NewRandomForestRegressor returns a forest with the default parameters.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{Params: defaultParams(tree.MaxFeaturesAll)}
	for _, opt := range opts {
		opt(&rf.Params)
	}
	return rf
}

// Fit trains every tree on its own bootstrap sample of X and y.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if err := rf.validate("RandomForestRegressor.Fit"); err != nil {
		return err
	}
	d, err := tree.NewRegressionData(X, y)
	if err != nil {
		return err
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	err = rf.fitTrees(d.NSamples, func(t int, plan treePlan) error {
		dt := tree.NewDecisionTreeRegressor(rf.treeOptions(plan.seed)...)
		if err := dt.FitSample(d, plan.samples); err != nil {
			return err
		}
		trees[t] = dt
		return nil
	})
	if err != nil {
		return err
	}

	perTree := make([][]float64, len(trees))
	for t, dt := range trees {
		perTree[t] = dt.FeatureImportances()
	}
	rf.Trees = trees
	rf.NFeatures = d.NFeatures
	rf.Importances_ = meanImportances(perTree, d.NFeatures)
	rf.SetFitted()
	return nil
}

// Predict returns the mean tree prediction per row as an n × 1 matrix.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	n, p := X.Dims()
	if p != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.NFeatures, p, 1)
	}

	preds := make([]mat.Matrix, len(rf.Trees))
	err := parallel.ForEach(len(rf.Trees), rf.NJobs, func(t int) error {
		var err error
		preds[t], err = rf.Trees[t].Predict(X)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, 1, nil)
	for _, pred := range preds {
		out.Add(out, pred)
	}
	out.Scale(1/float64(len(preds)), out)
	return out, nil
}

// Score returns R² on X and y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return r2(y, pred), nil
}

// FeatureImportances returns the mean impurity decrease per feature, summing to 1.
func (rf *RandomForestRegressor) FeatureImportances() []float64 { return rf.Importances_ }

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} { return rf.Params.asMap() }

func r2(y, pred mat.Matrix) float64 {
	n, _ := y.Dims()
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
