package rfl

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

//ImpurityMeasure selects the criterion used to score classification splits.
type ImpurityMeasure int

const (
	//Gini scores a node by 1 - sum of squared class probabilities.
	Gini ImpurityMeasure = iota
	//Misclassification scores a node by 1 - probability of the majority class.
	Misclassification
	//CrossEntropy scores a node by the entropy of its class distribution.
	CrossEntropy
)

func (m ImpurityMeasure) String() string {
	switch m {
	case Gini:
		return "gini"
	case Misclassification:
		return "misclassification"
	case CrossEntropy:
		return "crossEntropy"
	}
	return "unknown"
}

//ParseImpurityMeasure maps a configuration string to an ImpurityMeasure.
func ParseImpurityMeasure(name string) (ImpurityMeasure, error) {
	switch name {
	case "gini", "":
		return Gini, nil
	case "misclassification":
		return Misclassification, nil
	case "crossEntropy":
		return CrossEntropy, nil
	}
	return Gini, errors.Errorf("unknown impurity measure %q", name)
}

//Split describes the partition of a node chosen by the split finder: the
//feature and threshold, the impurity or error reduction achieved and the
//left/right membership of every row of the node. Rows with feature value less
//than or equal to the threshold go left, the rest go right.
type Split struct {
	Feature    int
	Threshold  float64
	Gain       float64
	LeftCount  int
	RightCount int
	Membership map[int]bool
}

//impurityOf evaluates the given measure on a class count vector.
func impurityOf(counts []int, total int, measure ImpurityMeasure) float64 {
	if total == 0 {
		return 0
	}
	n := float64(total)
	switch measure {
	case Misclassification:
		maxCount := 0
		for _, c := range counts {
			if c > maxCount {
				maxCount = c
			}
		}
		return 1 - float64(maxCount)/n
	case CrossEntropy:
		e := 0.0
		for _, c := range counts {
			if c > 0 {
				p := float64(c) / n
				e -= p * math.Log(p)
			}
		}
		return e
	default:
		g := 1.0
		for _, c := range counts {
			p := float64(c) / n
			g -= p * p
		}
		return g
	}
}

//sseOf evaluates the total sum of squared errors of a node from its per
//dimension label sums and sums of squares.
func sseOf(sum, sumSq []float64, total int) float64 {
	if total == 0 {
		return 0
	}
	n := float64(total)
	s := 0.0
	for d := range sum {
		s += sumSq[d] - sum[d]*sum[d]/n
	}
	return s
}

//findClassificationSplit scans the sorted table of every candidate feature
//once, advancing running class counts for the left side, and returns the best
//impurity-reducing split or nil when no split improves on the node. Threshold
//candidates are midpoints between consecutive distinct values only, so both
//sides of a returned split are non-empty.
func findClassificationSplit(ds *Dataset, si *SortedIndex, features []int, counts []int, measure ImpurityMeasure) *Split {
	total := si.NumRows()
	if total < 2 {
		return nil
	}
	parent := impurityOf(counts, total, measure)
	if parent == 0 {
		return nil
	}

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	bestLeftLen := 0

	leftCounts := make([]int, len(counts))
	rightCounts := make([]int, len(counts))

	for _, q := range features {
		table := si.Table(q)
		for i := range leftCounts {
			leftCounts[i] = 0
		}
		for i := 0; i < total-1; i++ {
			leftCounts[ds.ClassOf(table[i])]++
			v := ds.Features.At(table[i], q)
			vNext := ds.Features.At(table[i+1], q)
			if v == vNext {
				continue
			}
			nL := i + 1
			nR := total - nL
			for j := range rightCounts {
				rightCounts[j] = counts[j] - leftCounts[j]
			}
			impL := impurityOf(leftCounts, nL, measure)
			impR := impurityOf(rightCounts, nR, measure)
			gain := parent - (float64(nL)*impL+float64(nR)*impR)/float64(total)
			if gain > bestGain {
				bestGain = gain
				bestFeature = q
				bestThreshold = (v + vNext) / 2
				bestLeftLen = nL
			}
		}
	}
	if bestFeature < 0 {
		return nil
	}
	return materializeSplit(si, bestFeature, bestThreshold, bestGain, bestLeftLen)
}

//findRegressionSplit is the regression counterpart of findClassificationSplit:
//a single pass per candidate feature maintaining running label sums and sums of
//squares, scored by the reduction of the total sum of squared errors.
func findRegressionSplit(ds *Dataset, si *SortedIndex, features []int, sum, sumSq []float64) *Split {
	total := si.NumRows()
	if total < 2 {
		return nil
	}
	parent := sseOf(sum, sumSq, total)

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	bestLeftLen := 0

	dim := len(sum)
	leftSum := make([]float64, dim)
	leftSumSq := make([]float64, dim)
	rightSum := make([]float64, dim)
	rightSumSq := make([]float64, dim)

	for _, q := range features {
		table := si.Table(q)
		for d := 0; d < dim; d++ {
			leftSum[d] = 0
			leftSumSq[d] = 0
		}
		for i := 0; i < total-1; i++ {
			for d := 0; d < dim; d++ {
				y := ds.Labels.At(table[i], d)
				leftSum[d] += y
				leftSumSq[d] += y * y
			}
			v := ds.Features.At(table[i], q)
			vNext := ds.Features.At(table[i+1], q)
			if v == vNext {
				continue
			}
			nL := i + 1
			nR := total - nL
			for d := 0; d < dim; d++ {
				rightSum[d] = sum[d] - leftSum[d]
				rightSumSq[d] = sumSq[d] - leftSumSq[d]
			}
			gain := parent - sseOf(leftSum, leftSumSq, nL) - sseOf(rightSum, rightSumSq, nR)
			if gain > bestGain {
				bestGain = gain
				bestFeature = q
				bestThreshold = (v + vNext) / 2
				bestLeftLen = nL
			}
		}
	}
	if bestFeature < 0 {
		return nil
	}
	return materializeSplit(si, bestFeature, bestThreshold, bestGain, bestLeftLen)
}

//materializeSplit turns the winning scan position into a Split with explicit
//left/right membership. All occurrences of a row share one feature value, so
//positional assignment along the winning table is consistent per row id.
func materializeSplit(si *SortedIndex, feature int, threshold, gain float64, leftLen int) *Split {
	table := si.Table(feature)
	membership := make(map[int]bool, len(table))
	for i, row := range table {
		membership[row] = i < leftLen
	}
	return &Split{
		Feature:    feature,
		Threshold:  threshold,
		Gain:       gain,
		LeftCount:  leftLen,
		RightCount: len(table) - leftLen,
		Membership: membership,
	}
}

//drawFeatureSubset draws mtry distinct feature indices from the tree's own
//random stream. The draw order is deterministic given the stream state and
//decides ties between equal-scoring splits.
func drawFeatureSubset(rng *rand.Rand, numFeatures, mtry int) []int {
	idx := make([]int, numFeatures)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < mtry; i++ {
		j := i + rng.Intn(numFeatures-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:mtry]
}
