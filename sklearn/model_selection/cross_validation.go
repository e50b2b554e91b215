package model_selection

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// ScoreFunc fits a fresh model on train and returns its score on test.
type ScoreFunc func(ctx context.Context, train, test []int) (float64, error)

// CVResult は交差検証のスコア
type CVResult struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
}

// CrossValScore runs score once per fold of splitter and summarizes the
// results (population standard deviation, as numpy's std). Folds run
// sequentially; a cancelled ctx stops before the next fold.
func CrossValScore(ctx context.Context, splitter Splitter, y []float64, score ScoreFunc) (*CVResult, error) {
	folds, err := splitter.Split(y)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for i, fold := range folds {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "cross validation cancelled")
		}
		s, err := score(ctx, fold.TrainIndices, fold.TestIndices)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		scores[i] = s
	}

	mean, std := stat.PopMeanStdDev(scores, nil)
	return &CVResult{Scores: scores, Mean: mean, Std: std}, nil
}
