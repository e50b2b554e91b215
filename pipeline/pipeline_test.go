package pipeline

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/interpreter"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/sklearn/ensemble"
)

func houses(t *testing.T) (*dataset.Dataset, *dataset.Column) {
	t.Helper()
	n := 40
	sqft := make([]float64, n)
	city := make([]string, n)
	price := make([]float64, n)
	for i := 0; i < n; i++ {
		sqft[i] = float64(50 + i*5)
		if i%2 == 0 {
			city[i] = "Tokyo"
			price[i] = sqft[i]*10 + 500
		} else {
			city[i] = "Osaka"
			price[i] = sqft[i] * 10
		}
	}
	sqft[3] = math.NaN()
	features, err := dataset.New(
		dataset.NewNumericColumn("sqft", sqft),
		dataset.NewTextColumn("city", city),
	)
	require.NoError(t, err)
	return features, dataset.NewNumericColumn("price", price)
}

func TestRegressionPipeline(t *testing.T) {
	features, target := houses(t)
	p := New(interpreter.Regression, "price",
		ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(10)))

	logger, _ := log.NewTestLogger(log.LevelDebug)
	require.NoError(t, p.Fit(features, target, logger))
	assert.True(t, p.IsFitted())

	got, err := p.PredictRecord(map[string]any{"sqft": 100.0, "city": "Tokyo", "extra": "ignored"})
	require.NoError(t, err)
	pred, ok := got.(float64)
	require.True(t, ok, "regression prediction should be a float64, got %T", got)
	assert.InDelta(t, 1500, pred, 150)

	imp := p.FeatureImportances()
	assert.Len(t, imp, 3)
	assert.Contains(t, imp, "num__sqft")
	assert.Contains(t, imp, "cat__city_Tokyo")

	_, err = p.PredictRecord(map[string]any{"sqft": 100.0})
	assert.Equal(t, errors.CodeColumnNotFound, errors.Code(err))
}

func TestClassificationPipelineSaveLoad(t *testing.T) {
	n := 30
	x := make([]float64, n)
	label := make([]string, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		switch {
		case i < 10:
			label[i] = "low"
		case i < 20:
			label[i] = "mid"
		default:
			label[i] = "high"
		}
	}
	features, err := dataset.New(dataset.NewNumericColumn("x", x))
	require.NoError(t, err)
	target := dataset.NewTextColumn("label", label)

	p := New(interpreter.Classification, "label",
		ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(10)))
	require.NoError(t, p.Fit(features, target, nil))
	assert.Equal(t, []string{"high", "low", "mid"}, p.ClassNames())

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, p.Save(path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "label", loaded.Target)
	assert.Equal(t, interpreter.Classification, loaded.Problem)

	for _, tc := range []struct {
		x    float64
		want string
	}{{2, "low"}, {15, "mid"}, {28, "high"}} {
		got, err := loaded.PredictRecord(map[string]any{"x": tc.x})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "x=%v", tc.x)
	}

	encoded, err := loaded.EncodeTarget(dataset.NewTextColumn("label", []string{"mid", "high"}))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0}, encoded)
}

func TestPipelineErrors(t *testing.T) {
	features, _ := houses(t)

	p := New(interpreter.Regression, "city",
		ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(2)))
	err := p.Fit(features.Drop("city"), dataset.NewTextColumn("city", make([]string, 40)), nil)
	assert.Equal(t, errors.CodeInvalidInput, errors.Code(err))

	_, err = p.PredictRecord(map[string]any{"sqft": 1.0})
	assert.Equal(t, errors.CodeNotFitted, errors.Code(err))

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"), nil)
	assert.Equal(t, errors.CodeFileNotFound, errors.Code(err))
}
