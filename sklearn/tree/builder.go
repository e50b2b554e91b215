package tree

import (
	"math"
	"math/rand"
	"sort"
)

const impurityEpsilon = 1e-12

// Node は決定木の1ノード。Feature < 0 なら葉。
type Node struct {
	Feature   int
	Threshold float64 // x <= Threshold なら左
	Left      int
	Right     int
	Value     []float64 // 分類: クラス確率, 回帰: [平均]
	Impurity  float64
	NSamples  int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Tree はフラットなノード配列で表した学習済みの木
type Tree struct {
	Nodes       []Node
	NFeatures   int
	Depth       int
	Importances []float64
}

// Value returns the leaf value reached by row.
func (t *Tree) Value(row []float64) []float64 {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	leaves := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// builder grows one tree. nClasses == 0 means regression.
type builder struct {
	p        params
	data     *Data
	nClasses int
	mtry     int
	rng      *rand.Rand
	tree     *Tree
	raw      []float64
}

func grow(p params, d *Data, idx []int, nClasses int) *Tree {
	b := &builder{
		p:        p,
		data:     d,
		nClasses: nClasses,
		mtry:     p.featuresPerSplit(d.NFeatures),
		rng:      rand.New(rand.NewSource(p.randomState)),
		tree:     &Tree{NFeatures: d.NFeatures},
		raw:      make([]float64, d.NFeatures),
	}
	own := make([]int, len(idx))
	copy(own, idx)
	b.build(own, 0)

	total := 0.0
	for _, v := range b.raw {
		total += v
	}
	b.tree.Importances = make([]float64, d.NFeatures)
	if total > 0 {
		for j, v := range b.raw {
			b.tree.Importances[j] = v / total
		}
	}
	return b.tree
}

// build appends the node for idx and its subtree, returning the node index.
func (b *builder) build(idx []int, depth int) int {
	value, impurity := b.nodeStats(idx)
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:  -1,
		Value:    value,
		Impurity: impurity,
		NSamples: len(idx),
	})
	if depth > b.tree.Depth {
		b.tree.Depth = depth
	}

	n := len(idx)
	if (b.p.maxDepth >= 0 && depth >= b.p.maxDepth) ||
		n < b.p.minSamplesSplit ||
		n < 2*b.p.minSamplesLeaf ||
		impurity <= impurityEpsilon {
		return id
	}

	s, ok := b.bestSplit(idx, impurity)
	if !ok {
		return id
	}

	// idx は s.feature で並べ替え済みのまま返ってくる
	left := idx[:s.pos]
	right := idx[s.pos:]
	b.raw[s.feature] += float64(n)*impurity - float64(len(left))*s.leftImpurity - float64(len(right))*s.rightImpurity

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	node := &b.tree.Nodes[id]
	node.Feature = s.feature
	node.Threshold = s.threshold
	node.Left = l
	node.Right = r
	return id
}

func (b *builder) nodeStats(idx []int) ([]float64, float64) {
	n := float64(len(idx))
	if b.nClasses == 0 {
		var sum, sumSq float64
		for _, i := range idx {
			y := b.data.Y[i]
			sum += y
			sumSq += y * y
		}
		return []float64{sum / n}, varianceOf(sum, sumSq, n)
	}
	counts := make([]float64, b.nClasses)
	for _, i := range idx {
		counts[int(b.data.Y[i])]++
	}
	imp := b.classImpurity(counts, n)
	for k := range counts {
		counts[k] /= n
	}
	return counts, imp
}

type split struct {
	feature       int
	threshold     float64
	pos           int
	leftImpurity  float64
	rightImpurity float64
}

// bestSplit searches up to mtry non-constant features in random order.
// On success idx is left sorted by the chosen feature.
func (b *builder) bestSplit(idx []int, parentImpurity float64) (split, bool) {
	var best split
	bestScore := math.Inf(1)
	found := false
	visited := 0

	for _, f := range b.rng.Perm(b.data.NFeatures) {
		if visited >= b.mtry {
			break
		}
		col := b.data.Cols[f]
		sort.Slice(idx, func(a, c int) bool { return col[idx[a]] < col[idx[c]] })
		if col[idx[0]] == col[idx[len(idx)-1]] {
			continue
		}
		visited++

		s, score, ok := b.scanFeature(f, idx)
		if ok && score < bestScore {
			best, bestScore, found = s, score, true
		}
	}
	if !found || bestScore > parentImpurity+impurityEpsilon {
		return split{}, false
	}

	col := b.data.Cols[best.feature]
	sort.Slice(idx, func(a, c int) bool { return col[idx[a]] < col[idx[c]] })
	return best, true
}

// scanFeature sweeps the sorted idx and returns the split with the lowest
// weighted child impurity.
func (b *builder) scanFeature(f int, idx []int) (split, float64, bool) {
	col := b.data.Cols[f]
	n := len(idx)
	minLeaf := b.p.minSamplesLeaf

	var best split
	bestScore := math.Inf(1)
	found := false

	if b.nClasses == 0 {
		var totalSum, totalSq float64
		for _, i := range idx {
			y := b.data.Y[i]
			totalSum += y
			totalSq += y * y
		}
		var leftSum, leftSq float64
		for pos := 1; pos < n; pos++ {
			y := b.data.Y[idx[pos-1]]
			leftSum += y
			leftSq += y * y
			if pos < minLeaf || n-pos < minLeaf || col[idx[pos-1]] == col[idx[pos]] {
				continue
			}
			nl, nr := float64(pos), float64(n-pos)
			li := varianceOf(leftSum, leftSq, nl)
			ri := varianceOf(totalSum-leftSum, totalSq-leftSq, nr)
			if score := (nl*li + nr*ri) / float64(n); score < bestScore {
				bestScore, found = score, true
				best = split{feature: f, threshold: midpoint(col[idx[pos-1]], col[idx[pos]]), pos: pos, leftImpurity: li, rightImpurity: ri}
			}
		}
		return best, bestScore, found
	}

	total := make([]float64, b.nClasses)
	for _, i := range idx {
		total[int(b.data.Y[i])]++
	}
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)
	for pos := 1; pos < n; pos++ {
		left[int(b.data.Y[idx[pos-1]])]++
		if pos < minLeaf || n-pos < minLeaf || col[idx[pos-1]] == col[idx[pos]] {
			continue
		}
		for k := range total {
			right[k] = total[k] - left[k]
		}
		nl, nr := float64(pos), float64(n-pos)
		li := b.classImpurity(left, nl)
		ri := b.classImpurity(right, nr)
		if score := (nl*li + nr*ri) / float64(n); score < bestScore {
			bestScore, found = score, true
			best = split{feature: f, threshold: midpoint(col[idx[pos-1]], col[idx[pos]]), pos: pos, leftImpurity: li, rightImpurity: ri}
		}
	}
	return best, bestScore, found
}

func (b *builder) classImpurity(counts []float64, n float64) float64 {
	if b.p.criterion == CriterionEntropy {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func varianceOf(sum, sumSq, n float64) float64 {
	mean := sum / n
	v := sumSq/n - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// midpoint returns a threshold between a < b that keeps a on the left.
func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	if m >= b {
		return a
	}
	return m
}
