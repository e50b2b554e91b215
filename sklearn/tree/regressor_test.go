package tree

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestDecisionTreeRegressor_StepFunction tests that a step is learned exactly
func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{5, 5, 5, 20, 20, 20})

	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if dt.GetNLeaves() != 2 {
		t.Errorf("Expected a single split, got %d leaves", dt.GetNLeaves())
	}
	root := dt.Tree().Nodes[0]
	if root.Threshold != 6.5 {
		t.Errorf("Expected threshold 6.5, got %v", root.Threshold)
	}

	preds, err := dt.Predict(mat.NewDense(2, 1, []float64{0, 100}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if preds.At(0, 0) != 5 || preds.At(1, 0) != 20 {
		t.Errorf("Unexpected predictions: %v, %v", preds.At(0, 0), preds.At(1, 0))
	}
	if score := dt.Score(X, y); score != 1.0 {
		t.Errorf("Expected perfect R², got %v", score)
	}
}

// TestDecisionTreeRegressor_MaxDepth tests leaf means under a depth limit
func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	X := mat.NewDense(8, 1, nil)
	y := mat.NewDense(8, 1, nil)
	for i := 0; i < 8; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i*i))
	}

	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	preds, _ := dt.Predict(X)
	// 0+1+4+9+16+25+36+49 = 140
	if math.Abs(preds.At(0, 0)-17.5) > 1e-12 {
		t.Errorf("A stump should predict the mean, got %v", preds.At(0, 0))
	}
	if dt.GetDepth() != 0 {
		t.Errorf("Expected depth 0, got %d", dt.GetDepth())
	}
}

// TestDecisionTreeRegressor_FeatureImportance tests that the informative feature wins
func TestDecisionTreeRegressor_FeatureImportance(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 5,
		1, 3,
		2, 5,
		3, 3,
		4, 5,
		5, 3,
		6, 5,
		7, 3,
	})
	y := mat.NewDense(8, 1, []float64{1, 1, 1, 1, 9, 9, 9, 9})

	dt := NewDecisionTreeRegressor(WithRandomState(7))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	imp := dt.FeatureImportances()
	if imp[0] != 1 || imp[1] != 0 {
		t.Errorf("Expected importances [1 0], got %v", imp)
	}
}

// TestDecisionTree_Validation tests input and parameter errors
func TestDecisionTree_Validation(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	if err := NewDecisionTreeRegressor(WithCriterion("gini")).Fit(X, y); err == nil {
		t.Error("Expected error for a classification criterion on a regressor")
	}
	if err := NewDecisionTreeClassifier(WithMaxFeatures("half")).Fit(X, y); err == nil {
		t.Error("Expected error for unknown max_features")
	}
	if err := NewDecisionTreeRegressor().Fit(X, mat.NewDense(2, 1, nil)); err == nil {
		t.Error("Expected dimension error")
	}
	if err := NewDecisionTreeRegressor().Fit(mat.NewDense(3, 1, []float64{1, math.NaN(), 3}), y); err == nil {
		t.Error("Expected error for NaN input")
	}

	dt := NewDecisionTreeRegressor()
	_ = dt.Fit(X, y)
	if _, err := dt.Predict(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("Expected error for wrong feature count")
	}
}

// TestDecisionTreeClassifier_FitSample tests index-based fitting with shared classes
func TestDecisionTreeClassifier_FitSample(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{10, 10, 20, 20, 30, 30})

	d, err := NewClassificationData(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Classes) != 3 || d.Y[4] != 2 {
		t.Fatalf("Labels should be encoded as class indices: %v %v", d.Classes, d.Y)
	}

	// Bootstrap-like sample that never contains class 30.
	dt := NewDecisionTreeClassifier()
	if err := dt.FitSample(d, []int{0, 0, 1, 2, 3, 3}); err != nil {
		t.Fatal(err)
	}
	probas, err := dt.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if _, cols := probas.Dims(); cols != 3 {
		t.Errorf("Expected probability columns for all classes, got %d", cols)
	}
	preds, _ := dt.Predict(mat.NewDense(1, 1, []float64{0}))
	if preds.At(0, 0) != 10 {
		t.Errorf("Prediction should decode to the original label, got %v", preds.At(0, 0))
	}
}

// TestDecisionTree_Gob tests that fitted trees survive a gob round trip
func TestDecisionTree_Gob(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	clf := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(3))
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(clf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var restored DecisionTreeClassifier
	if err := gob.NewDecoder(&buf).Decode(&restored); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !restored.IsFitted() || restored.criterion != "entropy" || restored.maxDepth != 3 {
		t.Errorf("params not restored: %+v", restored.GetParams())
	}
	want, _ := clf.PredictProba(X)
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("restored classifier predicts differently")
	}
}
