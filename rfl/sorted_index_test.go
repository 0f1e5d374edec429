package rfl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestClassificationDataset(t *testing.T, features *mat.Dense, classes []float64) *Dataset {
	t.Helper()
	ds, err := NewClassificationDataset(features, mat.NewDense(len(classes), 1, classes))
	require.NoError(t, err)
	return ds
}

func TestSortedIndexOrdersEveryFeature(t *testing.T) {
	features := mat.NewDense(5, 2, []float64{
		5.0, 1.0,
		4.0, 1.0,
		6.0, 0.5,
		1.0, 2.0,
		2.0, 1.0,
	})
	ds := newTestClassificationDataset(t, features, []float64{0, 0, 1, 1, 0})

	si := NewSortedIndex(ds, []int{0, 1, 2, 3, 4})

	require.Equal(t, []int{3, 4, 1, 0, 2}, si.Table(0))
	// ties on feature 1 break by row id
	require.Equal(t, []int{2, 0, 1, 4, 3}, si.Table(1))
}

func TestSortedIndexKeepsDuplicateOccurrences(t *testing.T) {
	features := mat.NewDense(3, 1, []float64{
		3.0,
		1.0,
		2.0,
	})
	ds := newTestClassificationDataset(t, features, []float64{0, 1, 0})

	si := NewSortedIndex(ds, []int{0, 1, 1, 2, 0})

	require.Equal(t, []int{1, 1, 2, 0, 0}, si.Table(0))
	require.Equal(t, 5, si.NumRows())
}

func TestRestrictRoundTripsByStableMerge(t *testing.T) {
	features := mat.NewDense(8, 2, []float64{
		0.3, 7.0,
		0.1, 3.0,
		0.9, 3.0,
		0.5, 1.0,
		0.7, 9.0,
		0.2, 5.0,
		0.8, 5.0,
		0.4, 2.0,
	})
	ds := newTestClassificationDataset(t, features, []float64{0, 0, 1, 1, 0, 1, 0, 1})

	rows := []int{0, 1, 2, 3, 4, 5, 6, 7}
	si := NewSortedIndex(ds, rows)

	membership := map[int]bool{}
	for _, row := range rows {
		membership[row] = row%3 != 0
	}

	left, right, err := si.Restrict(membership)
	require.NoError(t, err)

	for q := 0; q < si.NumFeatures(); q++ {
		// replaying the parent order must consume left and right in order
		li, ri := 0, 0
		for _, row := range si.Table(q) {
			if membership[row] {
				require.Equal(t, row, left.Table(q)[li])
				li++
			} else {
				require.Equal(t, row, right.Table(q)[ri])
				ri++
			}
		}
		require.Len(t, left.Table(q), li)
		require.Len(t, right.Table(q), ri)
	}
}

func TestRestrictFailsOnUnknownRow(t *testing.T) {
	features := mat.NewDense(3, 1, []float64{1, 2, 3})
	ds := newTestClassificationDataset(t, features, []float64{0, 1, 0})

	si := NewSortedIndex(ds, []int{0, 1, 2})
	_, _, err := si.Restrict(map[int]bool{0: true, 1: false})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidIndex))
}
