package tree

import (
	"bytes"
	"encoding/gob"

	"github.com/YuminosukeSato/tabml/core/model"
)

// paramsState は gob 用に公開したハイパーパラメータ
type paramsState struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	RandomState     int64
}

func (p params) state() paramsState {
	return paramsState{
		Criterion:       p.criterion,
		MaxDepth:        p.maxDepth,
		MinSamplesSplit: p.minSamplesSplit,
		MinSamplesLeaf:  p.minSamplesLeaf,
		MaxFeatures:     p.maxFeatures,
		RandomState:     p.randomState,
	}
}

func (s paramsState) params() params {
	return params{
		criterion:       s.Criterion,
		maxDepth:        s.MaxDepth,
		minSamplesSplit: s.MinSamplesSplit,
		minSamplesLeaf:  s.MinSamplesLeaf,
		maxFeatures:     s.MaxFeatures,
		randomState:     s.RandomState,
	}
}

type treeState struct {
	Params  paramsState
	Tree    *Tree
	Classes []float64
	State   model.EstimatorState
}

func encodeState(s treeState) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeState(data []byte) (treeState, error) {
	var s treeState
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s)
	return s, err
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	return encodeState(treeState{Params: dt.params.state(), Tree: dt.tree, Classes: dt.classes_, State: dt.State})
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	s, err := decodeState(data)
	if err != nil {
		return err
	}
	dt.params = s.Params.params()
	dt.tree = s.Tree
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.State = s.State
	return nil
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeRegressor) GobEncode() ([]byte, error) {
	return encodeState(treeState{Params: dt.params.state(), Tree: dt.tree, State: dt.State})
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeRegressor) GobDecode(data []byte) error {
	s, err := decodeState(data)
	if err != nil {
		return err
	}
	dt.params = s.Params.params()
	dt.tree = s.Tree
	dt.State = s.State
	return nil
}
