package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

type DecisionTree struct {
	MaxDepth        int
	MinSamplesSplit int

	nodes []TreeNode
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewDecisionTree(maxDepth, minSamplesSplit int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesSplit: minSamplesSplit}
}

func (dt *DecisionTree) Fit(ctx context.Context, features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([]int, len(features))
	for i := range rows {
		rows[i] = i
	}
	dt.nodes = nil
	dt.buildNode(features, targets, rows, 0)
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

type treeJSON struct {
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	Nodes           []TreeNode `json:"nodes"`
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	return json.Marshal(treeJSON{MaxDepth: dt.MaxDepth, MinSamplesSplit: dt.MinSamplesSplit, Nodes: dt.nodes})
}

func (dt *DecisionTree) UnmarshalJSON(payload []byte) error {
	var decoded treeJSON
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	if len(decoded.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	// children always follow their parent, which rules out cycles
	for i, node := range decoded.Nodes {
		if node.IsLeaf {
			continue
		}
		if node.LeftChild <= i || node.RightChild <= i ||
			node.LeftChild >= len(decoded.Nodes) || node.RightChild >= len(decoded.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	dt.MaxDepth = decoded.MaxDepth
	dt.MinSamplesSplit = decoded.MinSamplesSplit
	dt.nodes = decoded.Nodes
	return nil
}

// buildNode appends the subtree for rows and returns the index of its root.
func (dt *DecisionTree) buildNode(features [][]float64, targets []float64, rows []int, depth int) int {
	pos := len(dt.nodes)
	value := meanTarget(targets, rows)
	dt.nodes = append(dt.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      value,
		IsLeaf:     true,
	})

	if dt.MaxDepth > 0 && depth >= dt.MaxDepth {
		return pos
	}
	if len(rows) < dt.minSamplesSplit() || isConstant(targets, rows) {
		return pos
	}

	bestFeature, threshold, ok := findBestSplit(features, targets, rows)
	if !ok {
		return pos
	}
	leftRows, rightRows := splitRows(features, rows, bestFeature, threshold)
	if len(leftRows) == 0 || len(rightRows) == 0 {
		return pos
	}

	left := dt.buildNode(features, targets, leftRows, depth+1)
	right := dt.buildNode(features, targets, rightRows, depth+1)
	dt.nodes[pos] = TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  left,
		RightChild: right,
		Value:      value,
		IsLeaf:     false,
	}
	return pos
}

func (dt *DecisionTree) minSamplesSplit() int {
	if dt.MinSamplesSplit < 2 {
		return 2
	}
	return dt.MinSamplesSplit
}

// findBestSplit picks the feature and midpoint threshold with the lowest
// summed squared error over both children. Ties keep the earlier candidate.
func findBestSplit(features [][]float64, targets []float64, rows []int) (int, float64, bool) {
	featureCount := len(features[rows[0]])
	bestFeature := -1
	bestThreshold := 0.0
	bestCost := math.MaxFloat64

	type point struct {
		value  float64
		target float64
	}
	points := make([]point, len(rows))

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		totalSum, totalSq := 0.0, 0.0
		for i, row := range rows {
			points[i] = point{value: features[row][featureIdx], target: targets[row]}
			totalSum += targets[row]
			totalSq += targets[row] * targets[row]
		}
		sort.SliceStable(points, func(a, b int) bool { return points[a].value < points[b].value })

		leftSum, leftSq := 0.0, 0.0
		for i := 0; i < len(points)-1; i++ {
			leftSum += points[i].target
			leftSq += points[i].target * points[i].target
			if points[i].value == points[i+1].value {
				continue
			}
			leftN := float64(i + 1)
			rightN := float64(len(points) - i - 1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			cost := (leftSq - leftSum*leftSum/leftN) + (rightSq - rightSum*rightSum/rightN)
			if cost < bestCost {
				bestCost = cost
				bestFeature = featureIdx
				bestThreshold = (points[i].value + points[i+1].value) / 2
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitRows(features [][]float64, rows []int, featureIdx int, threshold float64) ([]int, []int) {
	leftRows := make([]int, 0, len(rows))
	rightRows := make([]int, 0, len(rows))
	for _, row := range rows {
		if features[row][featureIdx] <= threshold {
			leftRows = append(leftRows, row)
		} else {
			rightRows = append(rightRows, row)
		}
	}
	return leftRows, rightRows
}

func meanTarget(targets []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	sum := 0.0
	for _, row := range rows {
		sum += targets[row]
	}
	return sum / float64(len(rows))
}

func isConstant(targets []float64, rows []int) bool {
	if len(rows) == 0 {
		return true
	}
	first := targets[rows[0]]
	for _, row := range rows[1:] {
		if targets[row] != first {
			return false
		}
	}
	return true
}
