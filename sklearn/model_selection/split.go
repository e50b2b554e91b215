// Package model_selection はデータ分割と交差検証を提供する
//
// 分割関数は行インデックスだけを返す。呼び出し側はdataset.Takeや
// 行列の部分コピーで実データを取り出す。
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// DefaultTestSize と DefaultRandomState は train_test_split の既定値
const (
	DefaultTestSize    = 0.2
	DefaultRandomState = 42
)

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// TrainTestSplit shuffles 0..n-1 and returns (train, test) index sets.
// The test set has ceil(testSize*n) rows.
func TrainTestSplit(n int, testSize float64, randomState int64) ([]int, []int, error) {
	if n < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"at least 2 samples are required to split into train and test sets")
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "test_size must be in (0, 1)")
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "the resulting train set would be empty")
	}

	perm := newRand(randomState).Perm(n)
	test := append([]int(nil), perm[:nTest]...)
	train := append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// Fold は交差検証の1分割
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter は交差検証の分割器。yは層化に使われる（KFoldは無視する）。
type Splitter interface {
	Split(y []float64) ([]Fold, error)
	GetNSplits() int
}

// KFold は連続したブロックで分割するk分割交差検証
type KFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewKFold creates a k-fold splitter. nSplits below 2 falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomState int64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomState: randomState}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split assigns len(y) samples to folds; the first n%k folds get one extra sample.
func (kf *KFold) Split(y []float64) ([]Fold, error) {
	n := len(y)
	if kf.NSplits > n {
		return nil, errors.NewValueError("KFold.Split",
			"n_splits cannot be greater than the number of samples")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomState)
		r.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	foldOf := make([]int, n)
	start := 0
	for f := 0; f < kf.NSplits; f++ {
		size := n / kf.NSplits
		if f < n%kf.NSplits {
			size++
		}
		for _, i := range indices[start : start+size] {
			foldOf[i] = f
		}
		start += size
	}
	return foldsFromAssignment(foldOf, kf.NSplits), nil
}

// StratifiedKFold はクラス比率を各分割で保つk分割交差検証
type StratifiedKFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewStratifiedKFold creates a stratified splitter. nSplits below 2 falls back to 5.
func NewStratifiedKFold(nSplits int, shuffle bool, randomState int64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomState: randomState}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int { return skf.NSplits }

// Split distributes each class over the folds in turn, classes in sorted order.
func (skf *StratifiedKFold) Split(y []float64) ([]Fold, error) {
	n := len(y)
	byClass := make(map[float64][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]float64, 0, len(byClass))
	largest := 0
	for label, members := range byClass {
		labels = append(labels, label)
		if len(members) > largest {
			largest = len(members)
		}
	}
	sort.Float64s(labels)

	if skf.NSplits > n || skf.NSplits > largest {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			"n_splits cannot be greater than the number of members in each class")
	}

	var r *rand.Rand
	if skf.Shuffle {
		r = newRand(skf.RandomState)
	}

	foldOf := make([]int, n)
	next := 0
	for _, label := range labels {
		members := byClass[label]
		if r != nil {
			r.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		}
		// 直前のクラスが終わった分割から続けて配ることで、各分割の大きさを揃える
		for _, i := range members {
			foldOf[i] = next
			next = (next + 1) % skf.NSplits
		}
	}
	return foldsFromAssignment(foldOf, skf.NSplits), nil
}

func foldsFromAssignment(foldOf []int, k int) []Fold {
	folds := make([]Fold, k)
	for i, f := range foldOf {
		for g := range folds {
			if g == f {
				folds[g].TestIndices = append(folds[g].TestIndices, i)
			} else {
				folds[g].TrainIndices = append(folds[g].TrainIndices, i)
			}
		}
	}
	return folds
}
