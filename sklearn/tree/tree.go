// Package tree implements regression trees: the flat binary tree shared by
// every tree learner and a CART DecisionTreeRegressor.
package tree

import (
	"gonum.org/v1/gonum/mat"
)

// LeafFeature marks a leaf in Node.Feature.
const LeafFeature = -1

// Node is one node of a binary tree stored in Tree.Nodes. Samples reach the
// Left child when X[Feature] <= Threshold.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
	Gain      float64
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool {
	return n.Feature == LeafFeature
}

// Tree is a binary tree whose root is Nodes[0].
type Tree struct {
	Nodes []Node
}

// AddLeaf appends a leaf and returns its index.
func (t *Tree) AddLeaf(value float64, samples int) int {
	t.Nodes = append(t.Nodes, Node{Feature: LeafFeature, Left: -1, Right: -1, Value: value, Samples: samples})
	return len(t.Nodes) - 1
}

// AddSplit appends an internal node whose children are set later with
// SetChildren, and returns its index.
func (t *Tree) AddSplit(feature int, threshold, value, gain float64, samples int) int {
	t.Nodes = append(t.Nodes, Node{
		Feature: feature, Threshold: threshold, Left: -1, Right: -1,
		Value: value, Samples: samples, Gain: gain,
	})
	return len(t.Nodes) - 1
}

// SetChildren links an internal node to its children.
func (t *Tree) SetChildren(node, left, right int) {
	t.Nodes[node].Left = left
	t.Nodes[node].Right = right
}

// PredictAt returns the leaf value reached by row i of X.
func (t *Tree) PredictAt(X mat.Matrix, i int) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	idx := 0
	for {
		n := &t.Nodes[idx]
		if n.IsLeaf() {
			return n.Value
		}
		if X.At(i, n.Feature) <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		n := t.Nodes[idx]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}

// AccumulateImportances adds every split's gain to dst[feature].
func (t *Tree) AccumulateImportances(dst []float64) {
	for _, n := range t.Nodes {
		if !n.IsLeaf() && n.Feature < len(dst) {
			dst[n.Feature] += n.Gain
		}
	}
}
