package rfl

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

//TreeNode is a node of a tree. The tree is stored in an arena: LeftIndex and
//RightIndex are equal to -1 when the current node is a leaf, otherwise they
//contain arena indices of the children. A leaf node carries a LeafIndex into
//the LeafNodes arena.
type TreeNode struct {
	TreeNodeId            int
	Feature               int
	Threshold             float64
	LeftIndex, RightIndex int // -1, -1 if it is a leaf
	LeafIndex             int // -1 if it is a non-leaf tree node
	NumberOfRows          int
}

//IsLeaf returns whether this node points into the LeafNodes arena.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//GraphDescription returns the description of a tree node for rendering as a graph.
func (node TreeNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfRows))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintf("f_%d <= %6.5f", node.Feature, node.Threshold))
	return sb.String()
}

//LeafNode stores leaf-related information: the class distribution for
//classification or the mean label vector for regression.
type LeafNode struct {
	LeafNodeId   int
	Prediction   []float64
	NumberOfRows int
}

//GraphDescription returns the description of a leaf node for rendering as a graph.
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString("[")
	for _, val := range node.Prediction {
		sb.WriteString(fmt.Sprintf("  %6.2f,\n", val))
	}
	sb.WriteString("]\n")
	sb.WriteString(fmt.Sprintln(node.NumberOfRows))
	return sb.String()
}

//Tree is one member of the forest: an owned arena of nodes with the root at
//index 0 plus the label metadata needed to interpret leaf predictions. A tree
//is never mutated after construction.
type Tree struct {
	TreeNodes []TreeNode
	LeafNodes []LeafNode
	Classes   int
	LabelDim  int
}

//OutputDim returns the width of a prediction vector of this tree.
func (t *Tree) OutputDim() int {
	if t.Classes > 0 {
		return t.Classes
	}
	return t.LabelDim
}

//predictIndexed walks the arena from the root, asking value for the feature
//tested at every internal node, and returns the leaf prediction.
func (t *Tree) predictIndexed(value func(q int) float64) []float64 {
	ind := 0
	for t.TreeNodes[ind].LeafIndex == -1 {
		if value(t.TreeNodes[ind].Feature) <= t.TreeNodes[ind].Threshold {
			ind = t.TreeNodes[ind].LeftIndex
		} else {
			ind = t.TreeNodes[ind].RightIndex
		}
	}
	return t.LeafNodes[t.TreeNodes[ind].LeafIndex].Prediction
}

//PredictRow returns the leaf prediction for one feature vector.
func (t *Tree) PredictRow(x []float64) []float64 {
	return t.predictIndexed(func(q int) float64 { return x[q] })
}

//PredictValue routes every row of a feature matrix down the tree and collects
//the leaf predictions into one matrix.
func (t *Tree) PredictValue(features *mat.Dense) *mat.Dense {
	h, _ := features.Dims()
	prediction := mat.NewDense(h, t.OutputDim(), nil)
	for p := 0; p < h; p++ {
		row := p
		prediction.SetRow(p, t.predictIndexed(func(q int) float64 { return features.At(row, q) }))
	}
	return prediction
}

//nodeStats carries the label statistics of one node: class counts for
//classification, per-dimension label sums and sums of squares for regression,
//plus the prediction a leaf at this node would hold.
type nodeStats struct {
	counts     []int
	sum, sumSq []float64
	prediction []float64
	pure       bool
}

type treeBuilder struct {
	ds       *Dataset
	mtry     int
	impurity ImpurityMeasure
	nodeSize int
	rng      *rand.Rand
	tree     *Tree
}

//buildTree grows one unpruned binary tree from the in-bag row multiset. The
//sorted index is built once here; every recursion level partitions it without
//re-sorting.
func buildTree(ds *Dataset, impurity ImpurityMeasure, nodeSize, mtry int, rng *rand.Rand, inBag []int) (*Tree, error) {
	t := &Tree{Classes: ds.Classes, LabelDim: ds.LabelDim()}
	tb := &treeBuilder{ds: ds, mtry: mtry, impurity: impurity, nodeSize: nodeSize, rng: rng, tree: t}
	if _, err := tb.buildNode(NewSortedIndex(ds, inBag)); err != nil {
		return nil, err
	}
	return t, nil
}

//buildNode expands the node owning the given sorted index and returns its arena
//index. The node becomes a leaf when its row count is below the minimum node
//size, when it is pure, or when the split finder reports no improving split;
//otherwise the index is restricted by the chosen split and both children are
//expanded recursively.
func (tb *treeBuilder) buildNode(si *SortedIndex) (int, error) {
	rows := si.Rows()
	stats := tb.stats(rows)

	var sp *Split
	if len(rows) >= tb.nodeSize && !stats.pure {
		features := drawFeatureSubset(tb.rng, tb.ds.NumFeatures(), tb.mtry)
		if tb.ds.IsClassification() {
			sp = findClassificationSplit(tb.ds, si, features, stats.counts, tb.impurity)
		} else {
			sp = findRegressionSplit(tb.ds, si, features, stats.sum, stats.sumSq)
		}
	}

	nodeId := len(tb.tree.TreeNodes)
	if sp == nil {
		leafId := len(tb.tree.LeafNodes)
		tb.tree.TreeNodes = append(tb.tree.TreeNodes, TreeNode{
			TreeNodeId:   nodeId,
			Feature:      -1,
			LeftIndex:    -1,
			RightIndex:   -1,
			LeafIndex:    leafId,
			NumberOfRows: len(rows),
		})
		tb.tree.LeafNodes = append(tb.tree.LeafNodes, LeafNode{
			LeafNodeId:   leafId,
			Prediction:   stats.prediction,
			NumberOfRows: len(rows),
		})
		return nodeId, nil
	}

	tb.tree.TreeNodes = append(tb.tree.TreeNodes, TreeNode{
		TreeNodeId:   nodeId,
		Feature:      sp.Feature,
		Threshold:    sp.Threshold,
		LeftIndex:    -1,
		RightIndex:   -1,
		LeafIndex:    -1,
		NumberOfRows: len(rows),
	})

	left, right, err := si.Restrict(sp.Membership)
	if err != nil {
		return 0, err
	}
	leftId, err := tb.buildNode(left)
	if err != nil {
		return 0, err
	}
	tb.tree.TreeNodes[nodeId].LeftIndex = leftId

	rightId, err := tb.buildNode(right)
	if err != nil {
		return 0, err
	}
	tb.tree.TreeNodes[nodeId].RightIndex = rightId

	return nodeId, nil
}

//stats computes the label statistics of a node from its row occurrences.
func (tb *treeBuilder) stats(rows []int) nodeStats {
	if tb.ds.IsClassification() {
		counts := make([]int, tb.ds.Classes)
		for _, row := range rows {
			counts[tb.ds.ClassOf(row)]++
		}
		maxCount := 0
		prediction := make([]float64, tb.ds.Classes)
		for c, cnt := range counts {
			prediction[c] = float64(cnt) / float64(len(rows))
			if cnt > maxCount {
				maxCount = cnt
			}
		}
		return nodeStats{counts: counts, prediction: prediction, pure: maxCount == len(rows)}
	}

	dim := tb.ds.LabelDim()
	sum := make([]float64, dim)
	sumSq := make([]float64, dim)
	for _, row := range rows {
		for d := 0; d < dim; d++ {
			y := tb.ds.Labels.At(row, d)
			sum[d] += y
			sumSq[d] += y * y
		}
	}
	prediction := make([]float64, dim)
	for d := 0; d < dim; d++ {
		prediction[d] = sum[d] / float64(len(rows))
	}
	pure := true
	for _, row := range rows {
		for d := 0; d < dim; d++ {
			if tb.ds.Labels.At(row, d) != tb.ds.Labels.At(rows[0], d) {
				pure = false
				break
			}
		}
		if !pure {
			break
		}
	}
	return nodeStats{sum: sum, sumSq: sumSq, prediction: prediction, pure: pure}
}

func recurrentDraw(g *cgraph.Graph, tree *Tree, nodeNumber int, parentNode *cgraph.Node) error {
	currentNode, err := g.CreateNode(fmt.Sprint(tree.TreeNodes[nodeNumber].TreeNodeId))
	if err != nil {
		return err
	}

	if parentNode != nil {
		if _, err := g.CreateEdge("", parentNode, currentNode); err != nil {
			return err
		}
	}

	if tree.TreeNodes[nodeNumber].IsLeaf() {
		currentNode.Set("label", tree.LeafNodes[tree.TreeNodes[nodeNumber].LeafIndex].GraphDescription())
		currentNode.Set("shape", "box")
		return nil
	}
	currentNode.Set("label", tree.TreeNodes[nodeNumber].GraphDescription())
	if err := recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].LeftIndex, currentNode); err != nil {
		return err
	}
	return recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].RightIndex, currentNode)
}

//DrawGraph renders the tree as a graphviz graph.
func (t *Tree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, err
	}
	if err := recurrentDraw(graph, t, 0, nil); err != nil {
		return nil, nil, err
	}
	return graphViz, graph, nil
}
