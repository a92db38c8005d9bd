package table

import (
	"github.com/annotab/annotab/internal/header"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/pkg/types"
)

// Equal reports whether both tables hold the same keys, in any order, and the
// same columns. Empty tables ignore data type differences of levels and
// columns.
func (t *Table) Equal(o *Table) bool {
	if t == o {
		return true
	}
	if t.SplitID != o.SplitID || t.MediaID != o.MediaID || t.Description != o.Description ||
		!header.MetaEqual(t.Meta, o.Meta) {
		return false
	}
	if t.Kind() != o.Kind() || !t.index.SameNames(o.index) || t.Len() != o.Len() {
		return false
	}
	nonEmpty := t.Len() > 0
	if nonEmpty && !t.index.SameLevels(o.index) {
		return false
	}
	if len(t.columns) != len(o.columns) {
		return false
	}

	rows, ok := alignRows(t.index, o.index)
	if !ok {
		return false
	}
	for _, c := range t.columns {
		oc, ok := o.Column(c.name)
		if !ok || !c.sameHeader(oc) {
			return false
		}
		if nonEmpty && c.DType() != oc.DType() {
			return false
		}
		if !valuesAligned(c.vector(), oc.vector(), rows, nonEmpty) {
			return false
		}
	}
	return true
}

// alignRows maps every row of a to the row of b holding the same key. The
// k-th occurrence of a repeated key maps to its k-th occurrence in b. ok is
// false unless both indices hold the same multiset of keys.
func alignRows(a, b *index.Index) ([]int, bool) {
	if a.Len() != b.Len() || !a.SameNames(b) {
		return nil, false
	}
	keys := index.NewKeySet()
	var occurrences [][]int
	for r := 0; r < b.Len(); r++ {
		p, added := keys.Add(b.Row(r))
		if added {
			occurrences = append(occurrences, nil)
		}
		occurrences[p] = append(occurrences[p], r)
	}
	used := make([]int, len(occurrences))
	rows := make([]int, a.Len())
	for r := range rows {
		p, ok := keys.Find(a.Row(r))
		if !ok || used[p] == len(occurrences[p]) {
			return nil, false
		}
		rows[r] = occurrences[p][used[p]]
		used[p]++
	}
	return rows, true
}

// valuesAligned compares a with b reordered by rows.
func valuesAligned(a, b types.Vector, rows []int, checkType bool) bool {
	if checkType && a.DType != b.DType {
		return false
	}
	for r, p := range rows {
		if !a.Values[r].Equal(b.Values[p]) {
			return false
		}
	}
	return true
}
