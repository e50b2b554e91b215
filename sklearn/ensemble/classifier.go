package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/core/parallel"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/tree"
)

var (
	_ model.Estimator            = (*RandomForestClassifier)(nil)
	_ model.ProbabilityPredictor = (*RandomForestClassifier)(nil)
	_ model.FeatureImportancer   = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier は分類木の確率平均で予測するランダムフォレスト
//
// デフォルトは100本、ブートストラップあり、分割ごとに√p個の特徴量を使う。
type RandomForestClassifier struct {
	model.BaseEstimator
	Params

	Trees        []*tree.DecisionTreeClassifier
	Classes_     []float64
	NFeatures    int
	Importances_ []float64
}

// NewRandomForestClassifier returns a forest with the default parameters.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{Params: defaultParams(tree.MaxFeaturesSqrt)}
	for _, opt := range opts {
		opt(&rf.Params)
	}
	return rf
}

// Fit trains every tree on its own bootstrap sample. All trees share the
// class list of the full y, so probability columns line up even when a
// bootstrap sample misses a class.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if err := rf.validate("RandomForestClassifier.Fit"); err != nil {
		return err
	}
	d, err := tree.NewClassificationData(X, y)
	if err != nil {
		return err
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	err = rf.fitTrees(d.NSamples, func(t int, plan treePlan) error {
		dt := tree.NewDecisionTreeClassifier(append(rf.treeOptions(plan.seed), tree.WithCriterion(tree.CriterionGini))...)
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
	rf.Classes_ = append([]float64(nil), d.Classes...)
	rf.NFeatures = d.NFeatures
	rf.Importances_ = meanImportances(perTree, d.NFeatures)
	rf.SetFitted()
	return nil
}

// PredictProba returns the mean class probabilities (n × nClasses).
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	n, p := X.Dims()
	if p != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.NFeatures, p, 1)
	}

	probas := make([]mat.Matrix, len(rf.Trees))
	err := parallel.ForEach(len(rf.Trees), rf.NJobs, func(t int) error {
		var err error
		probas[t], err = rf.Trees[t].PredictProba(X)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, len(rf.Classes_), nil)
	for _, proba := range probas {
		out.Add(out, proba)
	}
	out.Scale(1/float64(len(probas)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability per row.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, rf.Classes_[best])
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Classes returns the sorted class labels.
func (rf *RandomForestClassifier) Classes() []float64 { return rf.Classes_ }

// FeatureImportances returns the mean impurity decrease per feature, summing to 1.
func (rf *RandomForestClassifier) FeatureImportances() []float64 { return rf.Importances_ }

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} { return rf.Params.asMap() }
