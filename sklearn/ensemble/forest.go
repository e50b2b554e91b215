// Package ensemble はランダムフォレストを提供する
//
// 各木はブートストラップ標本と特徴量のランダム選択で学習される。
// 木ごとのシードは親のRandomStateから逐次生成してから並列に学習するため、
// ゴルーチンのスケジューリングに関係なく結果は決定的になる。
package ensemble

import (
	"math/rand"
	"sync"

	"github.com/YuminosukeSato/tabml/core/parallel"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/tree"
)

// デフォルト値（scikit-learnのRandomForestと同じ）
const (
	DefaultNEstimators = 100
	DefaultRandomState = 42
)

// ProgressFunc は木が1本学習されるたびに呼ばれる。呼び出しは直列化される。
type ProgressFunc func(done, total int)

// Params はフォレストのハイパーパラメータ
type Params struct {
	NEstimators     int
	MaxDepth        int // -1 は無制限
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	NJobs           int // 0以下ならCPU数

	progress ProgressFunc
}

func defaultParams(maxFeatures string) Params {
	return Params{
		NEstimators:     DefaultNEstimators,
		MaxDepth:        -1,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     maxFeatures,
		Bootstrap:       true,
		RandomState:     DefaultRandomState,
	}
}

// Option はフォレストの設定を変更する
type Option func(*Params)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(p *Params) { p.NEstimators = n } }

// WithMaxDepth limits the depth of every tree. A negative value means no limit.
func WithMaxDepth(d int) Option { return func(p *Params) { p.MaxDepth = d } }

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) Option { return func(p *Params) { p.MinSamplesSplit = n } }

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) Option { return func(p *Params) { p.MinSamplesLeaf = n } }

// WithMaxFeatures sets the per-split feature sampling (see tree.MaxFeatures*).
func WithMaxFeatures(mode string) Option { return func(p *Params) { p.MaxFeatures = mode } }

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option { return func(p *Params) { p.Bootstrap = b } }

// WithRandomState seeds the forest.
func WithRandomState(seed int64) Option { return func(p *Params) { p.RandomState = seed } }

// WithNJobs limits the number of goroutines used for fitting and prediction.
func WithNJobs(n int) Option { return func(p *Params) { p.NJobs = n } }

// WithProgress registers a callback invoked after each fitted tree.
func WithProgress(fn ProgressFunc) Option { return func(p *Params) { p.progress = fn } }

func (p *Params) validate(op string) error {
	if p.NEstimators < 1 {
		return errors.NewValueError(op, "n_estimators must be positive")
	}
	return nil
}

func (p *Params) treeOptions(seed int64) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(p.MaxDepth),
		tree.WithMinSamplesSplit(p.MinSamplesSplit),
		tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
		tree.WithMaxFeatures(p.MaxFeatures),
		tree.WithRandomState(seed),
	}
}

// treePlan は1本の木の乱数シードとブートストラップ標本
type treePlan struct {
	seed    int64
	samples []int
}

// plan draws every tree's seed and sample sequentially from RandomState.
func (p *Params) plan(nSamples int) []treePlan {
	rng := rand.New(rand.NewSource(p.RandomState))
	plans := make([]treePlan, p.NEstimators)
	for t := range plans {
		plans[t].seed = rng.Int63()
	}
	for t := range plans {
		samples := make([]int, nSamples)
		if p.Bootstrap {
			local := rand.New(rand.NewSource(plans[t].seed))
			for i := range samples {
				samples[i] = local.Intn(nSamples)
			}
		} else {
			for i := range samples {
				samples[i] = i
			}
		}
		plans[t].samples = samples
	}
	return plans
}

// fitTrees runs fit for every tree in parallel and reports progress.
func (p *Params) fitTrees(nSamples int, fit func(t int, plan treePlan) error) error {
	plans := p.plan(nSamples)

	var mu sync.Mutex
	done := 0
	return parallel.ForEach(len(plans), p.NJobs, func(t int) error {
		if err := fit(t, plans[t]); err != nil {
			return err
		}
		if p.progress != nil {
			mu.Lock()
			done++
			p.progress(done, len(plans))
			mu.Unlock()
		}
		return nil
	})
}

// meanImportances averages per-tree importances and renormalizes them.
func meanImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		for j, v := range imp {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

func (p *Params) asMap() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.NEstimators,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      p.MaxFeatures,
		"bootstrap":         p.Bootstrap,
		"random_state":      p.RandomState,
	}
}
