package rfl

import (
	"math/rand"

	"gorgonia.org/tensor"
)

//argmax returns the index of the first maximum of the vector.
func argmax(vec []float64) int {
	best := 0
	for i, v := range vec {
		if v > vec[best] {
			best = i
		}
	}
	return best
}

//oobAccumulator accumulates per-row out-of-bag predictions across trees into a
//rows x outputDim tensor: one majority vote per tree for classification, the
//mean label vector for regression. Accumulation is an associative sum, so trees
//can be folded in any order; the trainer folds them in ordinal order to keep
//the estimate bit-identical across schedules.
type oobAccumulator struct {
	votes  *tensor.Dense
	counts []int
}

func newOOBAccumulator(rows, outputDim int) *oobAccumulator {
	return &oobAccumulator{
		votes:  tensor.New(tensor.WithShape(rows, outputDim), tensor.Of(tensor.Float64)),
		counts: make([]int, rows),
	}
}

//add folds one tree's prediction for one out-of-bag row into the accumulator.
func (acc *oobAccumulator) add(row int, vec []float64) error {
	for d, v := range vec {
		cur, err := acc.votes.At(row, d)
		if err != nil {
			return err
		}
		if err := acc.votes.SetAt(cur.(float64)+v, row, d); err != nil {
			return err
		}
	}
	acc.counts[row]++
	return nil
}

//accumulateTree evaluates a finished tree on its out-of-bag rows and folds the
//predictions in. Classification contributes a one-hot majority vote per row,
//regression the leaf mean vector.
func (acc *oobAccumulator) accumulateTree(t *Tree, ds *Dataset, oobRows []int) error {
	for _, row := range oobRows {
		r := row
		pred := t.predictIndexed(func(q int) float64 { return ds.Features.At(r, q) })
		if ds.IsClassification() {
			vote := make([]float64, t.Classes)
			vote[argmax(pred)] = 1
			if err := acc.add(row, vote); err != nil {
				return err
			}
		} else {
			if err := acc.add(row, pred); err != nil {
				return err
			}
		}
	}
	return nil
}

//estimate reduces the accumulated votes to the forest-level out-of-bag error:
//the misclassification rate of the per-row vote winners for classification, the
//mean squared error of the per-row mean predictions for regression. ok is false
//when no row was ever out of bag.
func (acc *oobAccumulator) estimate(ds *Dataset) (result float64, ok bool, err error) {
	rows := ds.NumRows()
	outputDim := acc.votes.Shape()[1]
	seen := 0
	loss := 0.0
	vec := make([]float64, outputDim)
	for row := 0; row < rows; row++ {
		if acc.counts[row] == 0 {
			continue
		}
		seen++
		for d := 0; d < outputDim; d++ {
			cur, err := acc.votes.At(row, d)
			if err != nil {
				return 0, false, err
			}
			vec[d] = cur.(float64)
		}
		if ds.IsClassification() {
			if argmax(vec) != ds.ClassOf(row) {
				loss++
			}
		} else {
			for d := 0; d < outputDim; d++ {
				diff := vec[d]/float64(acc.counts[row]) - ds.Labels.At(row, d)
				loss += diff * diff / float64(outputDim)
			}
		}
	}
	if seen == 0 {
		return 0, false, nil
	}
	return loss / float64(seen), true, nil
}

//treeOOBLoss evaluates one tree on the given out-of-bag rows: the
//misclassification rate for classification, the mean squared error for
//regression. When permFeature is non-negative, that feature's values are read
//through perm, i.e. permuted among the out-of-bag rows.
func treeOOBLoss(t *Tree, ds *Dataset, oobRows []int, permFeature int, perm []int) float64 {
	if len(oobRows) == 0 {
		return 0
	}
	loss := 0.0
	for i, row := range oobRows {
		r, p := row, i
		pred := t.predictIndexed(func(q int) float64 {
			if q == permFeature {
				return ds.Features.At(oobRows[perm[p]], q)
			}
			return ds.Features.At(r, q)
		})
		if ds.IsClassification() {
			if argmax(pred) != ds.ClassOf(row) {
				loss++
			}
		} else {
			for d := range pred {
				diff := pred[d] - ds.Labels.At(row, d)
				loss += diff * diff / float64(len(pred))
			}
		}
	}
	return loss / float64(len(oobRows))
}

//permutationImportance measures, per feature, the increase of the tree's
//out-of-bag loss when that feature's values are randomly permuted among the
//out-of-bag rows.
func permutationImportance(t *Tree, ds *Dataset, oobRows []int, rng *rand.Rand) []float64 {
	imp := make([]float64, ds.NumFeatures())
	if len(oobRows) == 0 {
		return imp
	}
	base := treeOOBLoss(t, ds, oobRows, -1, nil)
	for q := range imp {
		perm := rng.Perm(len(oobRows))
		imp[q] = treeOOBLoss(t, ds, oobRows, q, perm) - base
	}
	return imp
}
