// Package log defines standard attribute keys for tabml operations.
//
// Using these keys keeps every log line from the trainer, the predictor, the
// chart renderer and the HTTP server filterable the same way. Keys follow a
// hierarchical naming convention ("data.samples", "metrics.r2_score").

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator or transformer.
	// Examples: "RandomForestRegressor", "ColumnTransformer"
	ModelNameKey = "model.name"

	// ModelIDKey is the UUID written into the metadata sidecar of a trained model.
	ModelIDKey = "model.id"

	// ModelPathKey is the on-disk path of a model artifact.
	ModelPathKey = "model.path"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "interpret", "render"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	// Examples: "interpreter", "trainer", "chart", "server"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ColumnsKey lists column names.
	ColumnsKey = "data.columns"

	// TargetKey is the selected target column.
	TargetKey = "data.target"

	// TargetRuleKey names the selection rule that produced the target.
	// Values: "explicit", "keyword", "substring", "last_numeric"
	TargetRuleKey = "data.target_rule"

	// ProblemTypeKey is "regression" or "classification".
	ProblemTypeKey = "data.problem_type"

	// DroppedRowsKey counts rows removed because the target was missing.
	DroppedRowsKey = "data.dropped_rows"

	// DistinctValuesKey counts distinct non-missing target values.
	DistinctValuesKey = "data.distinct_values"

	// NumericFeaturesKey and CategoricalFeaturesKey list the preprocessing split.
	NumericFeaturesKey     = "data.numeric_features"
	CategoricalFeaturesKey = "data.categorical_features"

	// InputPathKey is the path of the dataset or record being read.
	InputPathKey = "data.input_path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// MSEKey records mean squared error.
	MSEKey = "metrics.mse"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// CVMeanKey and CVStdKey summarize cross-validation scores.
	CVMeanKey = "metrics.cv_mean"
	CVStdKey  = "metrics.cv_std"
)

// Prediction, Chart and Server Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// ChartKindKey is "line", "bar" or "scatter".
	ChartKindKey = "chart.kind"

	// HTTPMethodKey, HTTPPathKey and HTTPStatusKey describe a served request.
	HTTPMethodKey = "http.method"
	HTTPPathKey   = "http.path"
	HTTPStatusKey = "http.status"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrAttrKey carries the error value itself.
	ErrAttrKey = "error"

	// StacktraceKey contains stack trace information for debugging.
	// Automatically populated by the backends from cockroachdb/errors details.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// NEstimatorsKey records the forest size.
	NEstimatorsKey = "hyperparams.n_estimators"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationInterpret = "interpret"
	OperationRender    = "render"
	OperationEvaluate  = "evaluate"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
