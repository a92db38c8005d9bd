package table

import (
	"fmt"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/internal/header"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/pkg/types"
)

// Column is a named vector of values aligned with the index of its table.
// A column carries data only once it is assigned to a table.
type Column struct {
	SchemeID    string
	RaterID     string
	Description string
	Meta        map[string]any

	name   string
	table  *Table
	values *types.Vector
}

// NewColumn creates a column bound to a scheme and rater, either may be empty.
func NewColumn(schemeID, raterID string) *Column {
	return &Column{SchemeID: schemeID, RaterID: raterID}
}

// Name returns the name under which the column is assigned.
func (c *Column) Name() string {
	return c.name
}

// Table returns the owning table, nil for a detached column.
func (c *Column) Table() *Table {
	return c.table
}

// HasData reports whether the column holds values.
func (c *Column) HasData() bool {
	return c.values != nil
}

// Scheme resolves the bound scheme through the owning table.
func (c *Column) Scheme() (*header.Scheme, bool) {
	if c.SchemeID == "" || c.table == nil || c.table.schemes == nil {
		return nil, false
	}
	return c.table.schemes.Scheme(c.SchemeID)
}

// DType returns the effective data type: the scheme's when the bound scheme
// resolves, else the data type of the stored values, else object.
func (c *Column) DType() types.DataType {
	if s, ok := c.Scheme(); ok {
		return s.DType
	}
	if c.values != nil {
		return c.values.DType
	}
	return types.ObjectType
}

// Set replaces the values. Without a scheme the data type is inferred from
// the values.
func (c *Column) Set(values []types.Value) error {
	return c.SetVector(types.InferVector(values))
}

// SetVector replaces the values keeping the vector's data type unless a bound
// scheme imposes another one.
func (c *Column) SetVector(v types.Vector) error {
	if c.table == nil {
		return errors.NewInternalError(fmt.Sprintf("column %q is not assigned to a table", c.name), nil)
	}
	if v.Len() != c.table.Len() {
		return errors.NewLengthError("column %q: got %d values for %d rows", c.name, v.Len(), c.table.Len())
	}
	checked, err := c.check(v)
	if err != nil {
		return err
	}
	c.values = &checked
	return nil
}

// SetAt replaces the values at the rows matching the keys of idx. Every key
// must be present in the table.
func (c *Column) SetAt(idx *index.Index, values []types.Value) error {
	if c.table == nil {
		return errors.NewInternalError(fmt.Sprintf("column %q is not assigned to a table", c.name), nil)
	}
	if idx.Len() != len(values) {
		return errors.NewLengthError("column %q: got %d values for %d keys", c.name, len(values), idx.Len())
	}
	if !c.table.index.SameNames(idx) {
		return errors.NewShapeError("cannot set column %q at index with levels %v, table has levels %v",
			c.name, idx.Names(), c.table.index.Names())
	}
	keys := index.KeySetOf(c.table.index)
	rows := make([]int, idx.Len())
	for r := range rows {
		key, err := c.table.index.Coerce(idx.Row(r))
		if err != nil {
			return err
		}
		pos, ok := keys.Find(key)
		if !ok {
			return errors.NewShapeError("cannot set column %q: key %v is not in the table", c.name, key)
		}
		rows[r] = pos
	}

	current := c.vector()
	dtype := current.DType
	if _, ok := c.Scheme(); !ok {
		var err error
		if dtype, err = combineDTypes(current, types.InferVector(values)); err != nil {
			return errors.NewTypeError(fmt.Sprintf("column %q", c.name), err)
		}
	}
	raw := make([]types.Value, current.Len())
	copy(raw, current.Values)
	for i, r := range rows {
		raw[r] = values[i]
	}
	v, err := types.NewVector(dtype, raw)
	if err != nil {
		return errors.NewTypeError(fmt.Sprintf("column %q", c.name), err)
	}
	return c.SetVector(v)
}

// Get returns a copy of the values together with a copy of the owning index.
func (c *Column) Get() (types.Vector, *index.Index) {
	if c.table == nil {
		return types.NullVector(types.ObjectType, 0), nil
	}
	return c.vector().Copy(), c.table.index.Copy()
}

// Equal reports whether both columns have the same bindings and metadata and,
// when both carry data, the same values under the same index keys.
func (c *Column) Equal(o *Column) bool {
	if !c.sameHeader(o) {
		return false
	}
	if c.HasData() != o.HasData() {
		return false
	}
	if !c.HasData() {
		return true
	}
	if c.table == nil || o.table == nil {
		// without an index there are no keys to align, compare positionally
		if c.table != o.table {
			return false
		}
		return c.vector().Equal(o.vector())
	}
	rows, ok := alignRows(c.table.index, o.table.index)
	if !ok {
		return false
	}
	return valuesAligned(c.vector(), o.vector(), rows, c.table.Len() > 0)
}

func (c *Column) sameHeader(o *Column) bool {
	return c.SchemeID == o.SchemeID &&
		c.RaterID == o.RaterID &&
		c.Description == o.Description &&
		header.MetaEqual(c.Meta, o.Meta)
}

// check converts v to the bound scheme and validates its constraints.
func (c *Column) check(v types.Vector) (types.Vector, error) {
	if s, ok := c.Scheme(); ok {
		return s.CheckVector(c.name, v)
	}
	return v.Copy(), nil
}

// checkValue converts a single value like check.
func (c *Column) checkValue(v types.Value) (types.Value, error) {
	if s, ok := c.Scheme(); ok {
		checked, err := s.Check(v)
		if err != nil {
			return types.Value{}, fmt.Errorf("column %q: %w", c.name, err)
		}
		return checked, nil
	}
	return v, nil
}

// vector returns the stored values, or missing values of the effective data
// type for a column without data.
func (c *Column) vector() types.Vector {
	if c.values == nil {
		n := 0
		if c.table != nil {
			n = c.table.Len()
		}
		return types.NullVector(c.DType(), n)
	}
	return *c.values
}

// copyDetached copies bindings, metadata and values, without the owner.
func (c *Column) copyDetached() *Column {
	out := &Column{
		SchemeID:    c.SchemeID,
		RaterID:     c.RaterID,
		Description: c.Description,
		Meta:        header.CopyMeta(c.Meta),
		name:        c.name,
	}
	if c.values != nil {
		v := c.values.Copy()
		out.values = &v
	}
	return out
}
