// Package trainer は学習の一連の流れをまとめる
//
// CSV読み込み → 目的変数の推定と行の除去 → 問題種別の判定 →
// 80/20分割で学習・評価 → 交差検証 → モデル・メタデータ・CSVの保存。
// 保存は全ての段階が成功してから行い、途中で失敗した場合は何も残さない。
package trainer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/config"
	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/interpreter"
	"github.com/YuminosukeSato/tabml/metrics"
	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/preprocessing"
	"github.com/YuminosukeSato/tabml/sklearn/ensemble"
	"github.com/YuminosukeSato/tabml/sklearn/model_selection"
)

// Options describes one training run.
type Options struct {
	Input  string // CSV/TSV path
	Output string // model path; sidecars are derived from it
	Target string // interpreter.Auto for heuristic selection

	// OriginalFilename is recorded in the metadata when the input is an
	// upload stored under a generated name.
	OriginalFilename string

	Training config.Training

	// Progress is called once per fitted tree of the final model.
	Progress ensemble.ProgressFunc
}

// Result is what a successful run produced.
type Result struct {
	ModelPath    string
	MetadataPath string
	CSVPath      string
	Metadata     *Metadata
	Pipeline     *pipeline.Pipeline
}

// Run trains a model according to opts.
func Run(ctx context.Context, opts Options, logger log.Logger) (*Result, error) {
	logger = log.OrNop(logger).With(log.ComponentKey, "trainer")
	tc := opts.Training
	start := time.Now()

	if err := checkOutput(opts.Input, opts.Output); err != nil {
		return nil, err
	}

	ds, err := dataset.LoadCSV(opts.Input,
		dataset.WithNumericThreshold(tc.NumericThreshold),
		dataset.WithWarner(logger),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("Dataset loaded",
		log.InputPathKey, opts.Input,
		log.SamplesKey, ds.NumRows(),
		log.ColumnsKey, ds.Names(),
	)

	interp := interpreter.New(logger, interpreter.WithClassificationThreshold(tc.ClassificationThreshold))
	task, err := interp.Interpret(ds, opts.Target)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	n := task.X.NumRows()
	train, test, err := model_selection.TrainTestSplit(n, tc.TestSize, tc.RandomState)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(task.Problem, task.Target, newEstimator(task.Problem, tc, opts.Progress))
	if err := p.Fit(task.X.Take(train), task.Y.Take(train), logger); err != nil {
		return nil, err
	}
	logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, len(train),
		log.NEstimatorsKey, tc.NEstimators,
	)
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	labels, err := fullLabels(task)
	if err != nil {
		return nil, err
	}
	m, err := evaluate(p, task, test, labels, logger)
	if err != nil {
		return nil, err
	}

	cv, err := crossValidate(ctx, task, tc, labels, logger)
	if err != nil {
		return nil, err
	}
	m.CrossValidation = cv

	meta := &Metadata{
		ModelID:            uuid.NewString(),
		TargetColumn:       task.Target,
		ProblemType:        task.Problem,
		Features:           task.Features,
		Metrics:            m,
		TrainingDuration:   time.Since(start).String(),
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		NSamples:           n,
		DroppedRows:        task.Dropped,
		OriginalFilename:   opts.OriginalFilename,
		FeatureImportances: p.FeatureImportances(),
	}

	res := &Result{
		ModelPath:    opts.Output,
		MetadataPath: MetadataPath(opts.Output),
		CSVPath:      CSVPath(opts.Output),
		Metadata:     meta,
		Pipeline:     p,
	}
	if err := persist(res, ds); err != nil {
		return nil, err
	}

	logger.Info("Training completed",
		log.ModelIDKey, meta.ModelID,
		log.ModelPathKey, res.ModelPath,
		log.ProblemTypeKey, string(task.Problem),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.NewUnexpectedFailure("train", err)
	}
	return nil
}

func newEstimator(problem interpreter.ProblemType, tc config.Training, progress ensemble.ProgressFunc) model.Estimator {
	opts := []ensemble.Option{
		ensemble.WithNEstimators(tc.NEstimators),
		ensemble.WithMaxDepth(tc.MaxDepth),
		ensemble.WithMinSamplesLeaf(tc.MinSamplesLeaf),
		ensemble.WithRandomState(tc.RandomState),
	}
	if progress != nil {
		opts = append(opts, ensemble.WithProgress(progress))
	}
	if problem == interpreter.Classification {
		return ensemble.NewRandomForestClassifier(opts...)
	}
	return ensemble.NewRandomForestRegressor(opts...)
}

// fullLabels fits the class list on every cleaned row, so test and fold
// labels absent from a training subset can still be scored. Nil for regression.
func fullLabels(task *interpreter.Result) (*preprocessing.LabelEncoder, error) {
	if task.Problem != interpreter.Classification {
		return nil, nil
	}
	le := preprocessing.NewLabelEncoder()
	if err := le.Fit(task.Y); err != nil {
		return nil, err
	}
	return le, nil
}

// scoredTargets returns (yTrue, yPred) for rows, with classification
// predictions re-indexed into labels.
func scoredTargets(p *pipeline.Pipeline, task *interpreter.Result, rows []int, labels *preprocessing.LabelEncoder) (*mat.VecDense, *mat.VecDense, error) {
	pred, err := p.PredictEncoded(task.X.Take(rows))
	if err != nil {
		return nil, nil, err
	}
	target := task.Y.Take(rows)

	if labels == nil {
		y, err := p.EncodeTarget(target)
		if err != nil {
			return nil, nil, err
		}
		return mat.NewVecDense(len(y), y), mat.NewVecDense(len(pred), pred), nil
	}

	y, err := labels.Transform(target)
	if err != nil {
		return nil, nil, err
	}
	index := make(map[string]int, labels.NClasses())
	for k, name := range labels.Names() {
		index[name] = k
	}
	trained := p.ClassNames()
	for i, k := range pred {
		pred[i] = float64(index[trained[int(k)]])
	}
	return mat.NewVecDense(len(y), y), mat.NewVecDense(len(pred), pred), nil
}

func evaluate(p *pipeline.Pipeline, task *interpreter.Result, test []int, labels *preprocessing.LabelEncoder, logger log.Logger) (*Metrics, error) {
	yTrue, yPred, err := scoredTargets(p, task, test, labels)
	if err != nil {
		return nil, err
	}

	m := &Metrics{}
	if labels == nil {
		scores, err := metrics.EvaluateRegression(yTrue, yPred)
		if err != nil {
			return nil, err
		}
		m.RegressionScores = &scores
		logger.Info("Model evaluated",
			log.OperationKey, log.OperationEvaluate,
			log.PhaseKey, log.PhaseValidation,
			log.MSEKey, scores.MSE,
			log.R2ScoreKey, scores.R2,
		)
		return m, nil
	}

	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	report, err := metrics.ClassificationReport(yTrue, yPred, labels.Names(), logger)
	if err != nil {
		return nil, err
	}
	m.Accuracy = &acc
	m.Report = report
	logger.Info("Model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.PhaseKey, log.PhaseValidation,
		log.AccuracyKey, acc,
	)
	return m, nil
}

// crossValidate scores fresh pipelines on k folds of the full cleaned set.
// It returns nil without error when cross-validation is disabled or the
// data is too small for the requested folds.
func crossValidate(ctx context.Context, task *interpreter.Result, tc config.Training, labels *preprocessing.LabelEncoder, logger log.Logger) (*model_selection.CVResult, error) {
	k := tc.CVFolds
	if k < 2 {
		return nil, nil
	}
	n := task.X.NumRows()

	var splitter model_selection.Splitter
	var y []float64
	if labels == nil {
		splitter = model_selection.NewKFold(k, true, tc.RandomState)
		y = make([]float64, n)
		for i := range y {
			y[i] = task.Y.Float(i)
		}
	} else {
		splitter = model_selection.NewStratifiedKFold(k, true, tc.RandomState)
		var err error
		if y, err = labels.Transform(task.Y); err != nil {
			return nil, err
		}
	}

	if reason := cvSkipReason(k, y, labels != nil); reason != "" {
		logger.Warn("Cross-validation skipped: "+reason,
			log.SamplesKey, n,
			"cv.folds", k,
		)
		return nil, nil
	}

	score := func(ctx context.Context, train, test []int) (float64, error) {
		p := pipeline.New(task.Problem, task.Target, newEstimator(task.Problem, tc, nil))
		if err := p.Fit(task.X.Take(train), task.Y.Take(train), nil); err != nil {
			return 0, err
		}
		yTrue, yPred, err := scoredTargets(p, task, test, labels)
		if err != nil {
			return 0, err
		}
		if labels == nil {
			return metrics.R2Score(yTrue, yPred)
		}
		return metrics.Accuracy(yTrue, yPred)
	}

	cv, err := model_selection.CrossValScore(ctx, splitter, y, score)
	if err != nil {
		return nil, err
	}
	logger.Info("Cross-validation completed",
		log.PhaseKey, log.PhaseValidation,
		"cv.folds", k,
		log.CVMeanKey, cv.Mean,
		log.CVStdKey, cv.Std,
	)
	return cv, nil
}

func cvSkipReason(k int, y []float64, stratified bool) string {
	if len(y) < k {
		return "fewer samples than folds"
	}
	if !stratified {
		return ""
	}
	counts := make(map[float64]int)
	largest := 0
	for _, v := range y {
		counts[v]++
		if counts[v] > largest {
			largest = counts[v]
		}
	}
	if largest < k {
		return "every class has fewer members than folds"
	}
	return ""
}

// persist writes model, metadata and CSV copy. All three are staged first;
// a failure before or during the final renames leaves the files of earlier
// runs in place.
func persist(res *Result, ds *dataset.Dataset) error {
	if dir := filepath.Dir(res.ModelPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewUnexpectedFailure("create model directory", err)
		}
	}

	a := &artifacts{}
	if err := a.stage(res.ModelPath, res.Pipeline.Encode); err != nil {
		a.discard()
		return err
	}
	if err := a.stage(res.MetadataPath, writeJSON(res.Metadata)); err != nil {
		a.discard()
		return err
	}
	if err := a.stage(res.CSVPath, ds.WriteCSV); err != nil {
		a.discard()
		return err
	}
	return a.commit()
}
