package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestRegressionErrors(t *testing.T) {
	tests := []struct {
		name     string
		yTrue    *mat.VecDense
		yPred    *mat.VecDense
		mse, mae float64
		wantR2   float64
	}{
		{
			name:   "perfect",
			yTrue:  vec(3, 1, 4, 1, 5),
			yPred:  vec(3, 1, 4, 1, 5),
			mse:    0,
			mae:    0,
			wantR2: 1,
		},
		{
			// 残差 -1, +1, -2, +2
			name:   "symmetric residuals",
			yTrue:  vec(10, 20, 30, 40),
			yPred:  vec(11, 19, 32, 38),
			mse:    2.5,
			mae:    1.5,
			wantR2: 1 - 10.0/500.0,
		},
		{
			// 平均を予測すればR²は0
			name:   "predicting the mean",
			yTrue:  vec(2, 4, 6),
			yPred:  vec(4, 4, 4),
			mse:    8.0 / 3.0,
			mae:    4.0 / 3.0,
			wantR2: 0,
		},
		{
			name:   "worse than the mean",
			yTrue:  vec(1, 2, 3),
			yPred:  vec(3, 2, 1),
			mse:    8.0 / 3.0,
			mae:    4.0 / 3.0,
			wantR2: -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mse, err := MSE(tt.yTrue, tt.yPred)
			if err != nil {
				t.Fatalf("MSE: %v", err)
			}
			if math.Abs(mse-tt.mse) > 1e-10 {
				t.Errorf("MSE = %v, want %v", mse, tt.mse)
			}

			rmse, _ := RMSE(tt.yTrue, tt.yPred)
			if math.Abs(rmse-math.Sqrt(tt.mse)) > 1e-10 {
				t.Errorf("RMSE = %v, want %v", rmse, math.Sqrt(tt.mse))
			}

			mae, _ := MAE(tt.yTrue, tt.yPred)
			if math.Abs(mae-tt.mae) > 1e-10 {
				t.Errorf("MAE = %v, want %v", mae, tt.mae)
			}

			r2, _ := R2Score(tt.yTrue, tt.yPred)
			if math.Abs(r2-tt.wantR2) > 1e-10 {
				t.Errorf("R2 = %v, want %v", r2, tt.wantR2)
			}
		})
	}
}

// 目的変数が定数のときR²はNaNにならない
func TestR2ScoreConstantTarget(t *testing.T) {
	y := vec(7, 7, 7)

	r2, err := R2Score(y, vec(7, 7, 7))
	if err != nil || r2 != 1 {
		t.Errorf("exact prediction of a constant: R2 = %v, err = %v", r2, err)
	}

	r2, err = R2Score(y, vec(7, 8, 7))
	if err != nil || r2 != 0 {
		t.Errorf("inexact prediction of a constant: R2 = %v, err = %v", r2, err)
	}
}

func TestRegressionInputErrors(t *testing.T) {
	fns := map[string]func(yTrue, yPred mat.Vector) (float64, error){
		"MSE":  MSE,
		"RMSE": RMSE,
		"MAE":  MAE,
		"R2":   R2Score,
	}
	for name, fn := range fns {
		t.Run(name, func(t *testing.T) {
			_, err := fn(vec(1, 2, 3), vec(1, 2))
			if errors.Code(err) != errors.CodeDimensionMismatch {
				t.Errorf("length mismatch: code = %q", errors.Code(err))
			}
			_, err = fn(&mat.VecDense{}, &mat.VecDense{})
			if errors.Code(err) != errors.CodeInvalidInput {
				t.Errorf("empty input: code = %q", errors.Code(err))
			}
		})
	}
}

func TestEvaluateRegression(t *testing.T) {
	s, err := EvaluateRegression(vec(10, 20, 30, 40), vec(11, 19, 32, 38))
	if err != nil {
		t.Fatalf("EvaluateRegression: %v", err)
	}
	if s.MSE != 2.5 || s.MAE != 1.5 {
		t.Errorf("unexpected scores %+v", s)
	}
	if math.Abs(s.RMSE-math.Sqrt(2.5)) > 1e-12 || math.Abs(s.R2-0.98) > 1e-12 {
		t.Errorf("unexpected scores %+v", s)
	}

	if _, err := EvaluateRegression(vec(1), vec(1, 2)); err == nil {
		t.Error("expected a dimension error")
	}
}

func BenchmarkEvaluateRegression(b *testing.B) {
	n := 10000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+math.Sin(float64(i)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = EvaluateRegression(yTrue, yPred)
	}
}
