// Package tree はCARTアルゴリズムによる決定木を実装する
//
// DecisionTreeClassifier（gini / entropy）とDecisionTreeRegressor（squared_error）を
// 提供する。木はフラットなノード配列として保持され、encoding/gobで保存できる。
// ランダムフォレストから使うため、列指向のDataと行インデックスの組で
// 学習するFitSampleも公開している。
package tree

import (
	"math"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// 分割基準
const (
	CriterionGini         = "gini"
	CriterionEntropy      = "entropy"
	CriterionSquaredError = "squared_error"
)

// max_features の指定
const (
	MaxFeaturesAll  = ""
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// params は分類木・回帰木で共通のハイパーパラメータ
type params struct {
	criterion       string
	maxDepth        int // -1 は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	randomState     int64
}

func defaultParams(criterion string) params {
	return params{
		criterion:       criterion,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesAll,
		randomState:     0,
	}
}

// Option は決定木の設定を変更する
type Option func(*params)

// WithCriterion sets the impurity measure.
func WithCriterion(c string) Option {
	return func(p *params) { p.criterion = c }
}

// WithMaxDepth limits the depth of the tree. A negative value means no limit.
func WithMaxDepth(d int) Option {
	return func(p *params) { p.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split:
// MaxFeaturesAll, MaxFeaturesSqrt or MaxFeaturesLog2.
func WithMaxFeatures(mode string) Option {
	return func(p *params) { p.maxFeatures = mode }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed int64) Option {
	return func(p *params) { p.randomState = seed }
}

func (p *params) validate(op string, allowed ...string) error {
	ok := false
	for _, c := range allowed {
		if p.criterion == c {
			ok = true
		}
	}
	if !ok {
		return errors.NewValueError(op, "unsupported criterion '"+p.criterion+"'")
	}
	switch p.maxFeatures {
	case MaxFeaturesAll, MaxFeaturesSqrt, MaxFeaturesLog2:
	default:
		return errors.NewValueError(op, "unsupported max_features '"+p.maxFeatures+"'")
	}
	if p.minSamplesSplit < 2 {
		return errors.NewValueError(op, "min_samples_split must be at least 2")
	}
	if p.minSamplesLeaf < 1 {
		return errors.NewValueError(op, "min_samples_leaf must be at least 1")
	}
	return nil
}

// featuresPerSplit resolves max_features for p features.
func (p *params) featuresPerSplit(nFeatures int) int {
	k := nFeatures
	switch p.maxFeatures {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	}
	if k < 1 {
		k = 1
	}
	return k
}

func (p *params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

func (p *params) setParams(values map[string]interface{}) error {
	for key, v := range values {
		var ok bool
		switch key {
		case "criterion":
			p.criterion, ok = v.(string)
		case "max_features":
			p.maxFeatures, ok = v.(string)
		case "max_depth":
			p.maxDepth, ok = v.(int)
		case "min_samples_split":
			p.minSamplesSplit, ok = v.(int)
		case "min_samples_leaf":
			p.minSamplesLeaf, ok = v.(int)
		case "random_state":
			switch seed := v.(type) {
			case int64:
				p.randomState, ok = seed, true
			case int:
				p.randomState, ok = int64(seed), true
			}
		default:
			return errors.NewValueError("SetParams", "unknown parameter '"+key+"'")
		}
		if !ok {
			return errors.NewValueError("SetParams", "invalid value for parameter '"+key+"'")
		}
	}
	return nil
}
