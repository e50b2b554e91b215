// Package tabml trains and serves random forest models on tabular CSV data,
// with a command-line interface and an HTTP API on top.
//
// tabml picks the target column of a CSV file automatically, decides whether
// the problem is regression or classification, cleans and encodes the
// features, and fits a random forest. The fitted pipeline, a JSON metadata
// sidecar and a copy of the training CSV are written next to each other so
// that a model can later be listed, downloaded or used for prediction.
//
// # Installation
//
//	go install github.com/YuminosukeSato/tabml/cmd/tabml@latest
//
// # Quick Start
//
// Train a model, letting tabml choose the target:
//
//	tabml train houses.csv models/houses.gob
//
// Predict one record:
//
//	echo '{"sqft": 120, "city": "Tokyo"}' > record.json
//	tabml predict models/houses.gob record.json
//
// Render a chart of two columns as base64 PNG:
//
//	tabml graph houses.csv scatter sqft total_price
//
// Serve the same operations over HTTP:
//
//	tabml serve --addr :5000
//
// Every command prints one JSON object on stdout. Failures print
// {"status":"error","code":...,"message":...} on stderr and exit non-zero.
//
// # Library use
//
// The trainer package runs the whole training flow:
//
//	res, err := trainer.Run(ctx, trainer.Options{
//	    Input:    "houses.csv",
//	    Output:   "models/houses.gob",
//	    Training: config.Default().Training,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	p, err := pipeline.Load(res.ModelPath, logger)
//	pred, err := p.PredictRecord(map[string]any{"sqft": 120, "city": "Tokyo"})
//
// # Packages
//
//   - dataset: CSV loading with numeric/text column inference
//   - interpreter: target selection, row cleaning and problem type detection
//   - preprocessing: imputers, scaler and encoders behind a ColumnTransformer
//   - sklearn/tree, sklearn/ensemble: CART trees and random forests
//   - sklearn/model_selection: train/test split and (stratified) k-fold CV
//   - metrics: regression scores and classification reports
//   - pipeline: the persisted preprocessing + estimator bundle
//   - trainer: training flow and artifact writing
//   - registry: inventory of trained models
//   - chart: line, bar and scatter charts rendered with gonum/plot
//   - server: HTTP API
//   - config: viper based configuration (~/.tabml/config.yaml, TABML_* env)
//   - pkg/errors, pkg/log: error codes and structured logging
//   - core/model, core/parallel: estimator interfaces and worker helpers
//
// # License
//
// tabml is released under the MIT License.
package tabml
