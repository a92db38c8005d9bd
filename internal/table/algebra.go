package table

import (
	"fmt"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/pkg/types"
)

// Merge combines others into t in place.
//
// All tables must share level names and data types. The resulting index is the
// union of the row keys: t's rows first, then unseen keys of every operand in
// their order. The resulting columns are the union of the column names. Where
// two tables hold a value for the same key and column the values must be
// equal, a missing value yields to a present one. The split, media, scheme and
// rater bindings of the result are cleared. t is left untouched on error.
func (t *Table) Merge(others ...*Table) error {
	if len(others) == 0 {
		return nil
	}
	levels := t.index.Levels()
	for _, o := range others {
		if !t.index.SameNames(o.index) {
			return errors.NewShapeError("cannot merge table with levels %v into table with levels %v",
				o.index.Names(), t.index.Names())
		}
		for l, level := range o.index.Levels() {
			switch {
			case level.DType == levels[l].DType:
			case o.Len() == 0:
			case t.Len() == 0 && sameTypes(others, l, level.DType):
				levels[l].DType = level.DType
			default:
				return errors.NewShapeError("cannot merge table with level %q of dtype %s into level of dtype %s",
					level.Name, level.DType, levels[l].DType)
			}
		}
	}

	base := t.index
	if !sameLevelTypes(base.Levels(), levels) {
		var err error
		if base, err = index.Empty(levels...); err != nil {
			return err
		}
	}

	// union of the row keys
	keys := index.NewKeySet()
	var positions []int
	add := func(key []types.Value) int {
		p, added := keys.Add(key)
		if added {
			positions = append(positions, -1)
		}
		return p
	}
	var appended [][]types.Value
	rowMaps := make([][]int, len(others)+1)
	rowMaps[0] = make([]int, base.Len())
	for r := 0; r < base.Len(); r++ {
		p := add(base.Row(r))
		if positions[p] < 0 {
			positions[p] = r
		}
		rowMaps[0][r] = r
	}
	for i, o := range others {
		rowMaps[i+1] = make([]int, o.Len())
		for r := 0; r < o.Len(); r++ {
			key := o.index.Row(r)
			p := add(key)
			if positions[p] < 0 {
				positions[p] = base.Len() + len(appended)
				appended = append(appended, key)
			}
			rowMaps[i+1][r] = positions[p]
		}
	}
	merged := base.AppendRows(appended...)
	n := merged.Len()

	// union of the columns
	tables := append([]*Table{t}, others...)
	var names []string
	sources := make(map[string][]int)
	for ti, tb := range tables {
		for _, c := range tb.columns {
			if _, ok := sources[c.name]; !ok {
				names = append(names, c.name)
			}
			sources[c.name] = append(sources[c.name], ti)
		}
	}
	for _, name := range names {
		if merged.HasLevel(name) {
			return errors.Newf(errors.ErrCategoryTable, errors.CodeNameCollision,
				"column name %q is already used by an index level", name)
		}
	}

	columns := make([]*Column, len(names))
	for ci, name := range names {
		var acc types.Vector
		for k, ti := range sources[name] {
			c, _ := tables[ti].Column(name)
			v := c.vector()
			if k == 0 {
				acc = v
				continue
			}
			d, err := combineDTypes(acc, v)
			if err != nil {
				return errors.NewTypeError(fmt.Sprintf("cannot merge column %q", name), err)
			}
			if acc.AllNull() {
				acc = v
			}
			acc.DType = d
		}
		dtype := acc.DType

		values := make([]types.Value, n)
		for _, ti := range sources[name] {
			c, _ := tables[ti].Column(name)
			v, err := c.vector().Astype(dtype)
			if err != nil {
				return errors.NewTypeError(fmt.Sprintf("cannot merge column %q", name), err)
			}
			for r, val := range v.Values {
				if val.IsNull() {
					continue
				}
				p := rowMaps[ti][r]
				if values[p].IsNull() {
					values[p] = val
					continue
				}
				if !values[p].Equal(val) {
					return errors.NewConflictError("cannot merge column %q: key %v holds %s and %s",
						name, merged.Row(p), values[p], val).WithDetails(map[string]interface{}{
						"column": name,
						"row":    p,
					})
				}
			}
		}

		first, _ := tables[sources[name][0]].Column(name)
		col := first.copyDetached()
		col.SchemeID, col.RaterID = "", ""
		col.values = &types.Vector{DType: dtype, Values: values}
		columns[ci] = col
	}

	for _, c := range t.columns {
		c.table = nil
	}
	t.index = merged
	t.columns = columns
	for _, c := range columns {
		c.table = t
	}
	t.SplitID, t.MediaID = "", ""
	return nil
}

// Pick returns a new table with the rows whose keys are in idx, in the order
// of idx. Keys repeated in idx are picked once.
func (t *Table) Pick(idx *index.Index) (*Table, error) {
	if !t.index.SameLevels(idx) {
		return nil, errors.NewShapeError("cannot pick index with levels %v from table with levels %v",
			idx.Levels(), t.index.Levels())
	}
	keys := index.KeySetOf(t.index)
	picked := index.NewKeySet()
	var rows []int
	for r := 0; r < idx.Len(); r++ {
		key := idx.Row(r)
		p, ok := keys.Find(key)
		if !ok {
			continue
		}
		if _, added := picked.Add(key); added {
			rows = append(rows, p)
		}
	}
	return t.take(rows), nil
}

// Drop returns a new table without the rows whose keys are in idx.
func (t *Table) Drop(idx *index.Index) (*Table, error) {
	if !t.index.SameLevels(idx) {
		return nil, errors.NewShapeError("cannot drop index with levels %v from table with levels %v",
			idx.Levels(), t.index.Levels())
	}
	dropped := index.KeySetOf(idx)
	var rows []int
	for r := 0; r < t.Len(); r++ {
		if !dropped.Contains(t.index.Row(r)) {
			rows = append(rows, r)
		}
	}
	return t.take(rows), nil
}

// Fill supplies the values of new rows added by Extend.
type Fill interface {
	value(column string) types.Value
}

type fillAll struct{ v types.Value }

func (f fillAll) value(string) types.Value { return f.v }

type fillColumns map[string]types.Value

func (f fillColumns) value(column string) types.Value { return f[column] }

// FillAll fills every column with v.
func FillAll(v types.Value) Fill {
	return fillAll{v: v}
}

// FillColumns fills each named column with its value, other columns with
// missing values.
func FillColumns(values map[string]types.Value) Fill {
	return fillColumns(values)
}

// Extend adds the keys of idx that are not in t yet, in place. Every column
// receives the fill value at the new rows, a missing value when fill is nil.
// Keys already present keep their values. t is left untouched on error.
func (t *Table) Extend(idx *index.Index, fill Fill) error {
	if !t.index.SameNames(idx) {
		return errors.NewShapeError("cannot extend table with levels %v by index with levels %v",
			t.index.Names(), idx.Names())
	}
	base := t.index
	if base.Len() == 0 && !base.SameLevels(idx) {
		base = idx.Take(nil)
	}

	keys := index.KeySetOf(base)
	var added [][]types.Value
	for r := 0; r < idx.Len(); r++ {
		key, err := base.Coerce(idx.Row(r))
		if err != nil {
			return fmt.Errorf("cannot extend: %w", err)
		}
		if _, ok := keys.Add(key); ok {
			added = append(added, key)
		}
	}
	extended := base.AppendRows(added...)
	if err := extended.Validate(); err != nil {
		return fmt.Errorf("cannot extend: %w", err)
	}

	vectors := make([]types.Vector, len(t.columns))
	for i, c := range t.columns {
		v := types.Null()
		if fill != nil {
			v = fill.value(c.name)
		}
		current := c.vector()
		if _, bound := c.Scheme(); bound {
			checked, err := c.checkValue(v)
			if err != nil {
				return err
			}
			v = checked
		} else if !v.IsNull() && len(added) > 0 {
			dtype, err := combineDTypes(current, types.InferVector([]types.Value{v}))
			if err != nil {
				return errors.NewTypeError(fmt.Sprintf("cannot extend column %q", c.name), err)
			}
			if current, err = current.Astype(dtype); err != nil {
				return errors.NewTypeError(fmt.Sprintf("cannot extend column %q", c.name), err)
			}
			if v, err = types.Coerce(v, dtype); err != nil {
				return errors.NewTypeError(fmt.Sprintf("cannot extend column %q", c.name), err)
			}
		}
		fills := make([]types.Value, len(added))
		for r := range fills {
			fills[r] = v
		}
		vectors[i] = current.Append(fills...)
	}

	t.index = extended
	for i, c := range t.columns {
		v := vectors[i]
		c.values = &v
	}
	return nil
}

// combineDTypes returns the data type holding the values of both vectors:
// equal types are kept, int and float widen to float and an all missing
// object vector takes the other type.
func combineDTypes(a, b types.Vector) (types.DataType, error) {
	switch {
	case a.DType == b.DType:
		return a.DType, nil
	case a.DType == types.ObjectType && a.AllNull():
		return b.DType, nil
	case b.DType == types.ObjectType && b.AllNull():
		return a.DType, nil
	case isNumeric(a.DType) && isNumeric(b.DType):
		return types.FloatType, nil
	}
	return "", fmt.Errorf("%w: %s and %s", types.ErrIncompatibleType, a.DType, b.DType)
}

func isNumeric(d types.DataType) bool {
	return d == types.IntType || d == types.FloatType
}

// sameTypes reports whether every non-empty operand agrees on the data type
// of level l.
func sameTypes(others []*Table, l int, dtype types.DataType) bool {
	for _, o := range others {
		if o.Len() > 0 && o.index.Levels()[l].DType != dtype {
			return false
		}
	}
	return true
}

func sameLevelTypes(a, b []index.Level) bool {
	for i := range a {
		if a[i].DType != b[i].DType {
			return false
		}
	}
	return true
}
