package rfl

import (
	"sort"

	"github.com/pkg/errors"
)

//ErrInvalidIndex signals that a restriction referenced a row id that is absent
//from the table it was restricted from. It indicates a defect in bootstrap
//membership tracking, not a recoverable runtime condition.
var ErrInvalidIndex = errors.New("row index absent from sorted table")

//SortedIndex holds, for every feature, the in-bag row occurrences ordered by
//that feature's value. Ties are broken by the original row id so the order is
//deterministic. The index is built once per tree; child subsets are produced by
//Restrict without any re-sorting.
type SortedIndex struct {
	tables [][]int
}

//NewSortedIndex sorts the given row occurrences by every feature of the dataset.
//Duplicate occurrences from a with-replacement bootstrap stay in the tables as
//independent entries.
func NewSortedIndex(ds *Dataset, rows []int) *SortedIndex {
	w := ds.NumFeatures()
	si := &SortedIndex{tables: make([][]int, w)}
	for q := 0; q < w; q++ {
		table := make([]int, len(rows))
		copy(table, rows)
		col := q
		sort.Slice(table, func(i, j int) bool {
			vi := ds.Features.At(table[i], col)
			vj := ds.Features.At(table[j], col)
			if vi != vj {
				return vi < vj
			}
			return table[i] < table[j]
		})
		si.tables[q] = table
	}
	return si
}

//NumFeatures returns the number of per-feature tables.
func (si *SortedIndex) NumFeatures() int {
	return len(si.tables)
}

//NumRows returns the number of row occurrences in every table.
func (si *SortedIndex) NumRows() int {
	if len(si.tables) == 0 {
		return 0
	}
	return len(si.tables[0])
}

//Table returns the row occurrences ordered by the given feature.
func (si *SortedIndex) Table(q int) []int {
	return si.tables[q]
}

//Rows returns one ordering of the row occurrences of this index. Any table
//holds the full multiset, so the first one serves for per-node statistics.
func (si *SortedIndex) Rows() []int {
	return si.tables[0]
}

//Restrict partitions every per-feature table into a left and a right index in a
//single linear pass. membership maps a row id to true when the row goes left.
//The pass keeps the sort order, so neither child ever needs re-sorting. A row id
//missing from membership yields ErrInvalidIndex.
func (si *SortedIndex) Restrict(membership map[int]bool) (left, right *SortedIndex, err error) {
	left = &SortedIndex{tables: make([][]int, len(si.tables))}
	right = &SortedIndex{tables: make([][]int, len(si.tables))}
	for q, table := range si.tables {
		leftTable := make([]int, 0, len(table))
		rightTable := make([]int, 0, len(table))
		for _, row := range table {
			goesLeft, ok := membership[row]
			if !ok {
				return nil, nil, errors.Wrapf(ErrInvalidIndex, "row %d in table %d", row, q)
			}
			if goesLeft {
				leftTable = append(leftTable, row)
			} else {
				rightTable = append(rightTable, row)
			}
		}
		left.tables[q] = leftTable
		right.tables[q] = rightTable
	}
	return left, right, nil
}
