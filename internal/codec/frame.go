package codec

import (
	"fmt"

	"github.com/annotab/annotab/internal/database"
	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/internal/table"
	"github.com/annotab/annotab/pkg/types"
)

// frame is the body of one table: the index levels followed by the columns,
// each as a named vector of equal length.
type frame struct {
	names   []string
	vectors []types.Vector
}

func (f *frame) rows() int {
	if len(f.vectors) == 0 {
		return 0
	}
	return f.vectors[0].Len()
}

func tableFrame(t *table.Table) (*frame, error) {
	idx, vectors, err := t.Get()
	if err != nil {
		return nil, err
	}
	f := &frame{}
	for i, name := range idx.Names() {
		f.names = append(f.names, name)
		f.vectors = append(f.vectors, idx.Vector(i))
	}
	f.names = append(f.names, t.Columns()...)
	f.vectors = append(f.vectors, vectors...)
	return f, nil
}

// checkNames verifies that a decoded body has the fields the header lists.
func (f *frame) checkNames(want []string) error {
	if len(f.names) != len(want) {
		return fmt.Errorf("body has %d fields, header lists %d", len(f.names), len(want))
	}
	for i := range want {
		if f.names[i] != want[i] {
			return fmt.Errorf("body field %d is %q, header lists %q", i, f.names[i], want[i])
		}
	}
	for i, v := range f.vectors {
		if v.Len() != f.rows() {
			return fmt.Errorf("field %q has %d values, expected %d", f.names[i], v.Len(), f.rows())
		}
	}
	return nil
}

// decodeTable builds the table described by th from a decoded body. Levels
// take their recorded data type; columns take the data type of their scheme,
// else the recorded one, else the type inferred from the values. A nil body
// yields a table without rows.
func decodeTable(db *database.Database, id string, th *tableHeader, f *frame) (*table.Table, error) {
	levels := make([]index.Level, len(th.Levels))
	for i, l := range th.Levels {
		levels[i] = index.Level{Name: l.Name, DType: l.DType}
	}
	if f == nil {
		f = &frame{names: th.names()}
		for _, dtype := range th.dtypes() {
			if dtype == "" {
				dtype = types.ObjectType
			}
			f.vectors = append(f.vectors, types.NullVector(dtype, 0))
		}
	}
	if err := f.checkNames(th.names()); err != nil {
		return nil, decodeError(id, err)
	}

	keys := make([][]types.Value, len(levels))
	for i := range levels {
		keys[i] = f.vectors[i].Values
	}
	idx, err := index.New(levels, keys...)
	if err != nil {
		return nil, decodeError(id, err)
	}

	t := table.New(idx)
	t.SplitID = th.SplitID
	t.MediaID = th.MediaID
	t.Description = th.Description
	t.Meta = th.Meta
	t.SetSchemeResolver(db)
	for i, ch := range th.Columns {
		c := table.NewColumn(ch.SchemeID, ch.RaterID)
		c.Description = ch.Description
		c.Meta = ch.Meta
		if err := t.SetColumn(ch.Name, c); err != nil {
			return nil, decodeError(id, err)
		}
		v, err := canonicalize(db, ch, f.vectors[len(levels)+i])
		if err != nil {
			return nil, decodeError(id, fmt.Errorf("column %q: %w", ch.Name, err))
		}
		if err := c.SetVector(v); err != nil {
			return nil, decodeError(id, err)
		}
	}
	return t, nil
}

// canonicalize converts a stored column to its nominal data type. Stores
// without native types hand out object vectors, those are unwrapped first so
// that e.g. strings stored as objects end up as strings under a string scheme.
func canonicalize(db *database.Database, ch *columnHeader, v types.Vector) (types.Vector, error) {
	target := ch.DType
	if s, ok := db.Scheme(ch.SchemeID); ok && ch.SchemeID != "" {
		target = s.DType
	}
	if target == "" {
		if v.DType != types.ObjectType {
			return v, nil
		}
		return types.InferVector(unwrap(v.Values)), nil
	}
	if v.DType == target {
		return v, nil
	}
	if v.DType == types.ObjectType {
		return types.NewVector(target, unwrap(v.Values))
	}
	return v.Astype(target)
}

func unwrap(values []types.Value) []types.Value {
	out := make([]types.Value, len(values))
	for i, v := range values {
		if v.Type() == types.ObjectType {
			out[i] = types.FromNative(v.AsObject())
		} else {
			out[i] = v
		}
	}
	return out
}

func decodeError(table string, err error) error {
	return errors.NewStorageError(errors.CodeDecodeFailed, fmt.Sprintf("table %q", table), err)
}

func encodeError(table string, err error) error {
	return errors.NewStorageError(errors.CodeEncodeFailed, fmt.Sprintf("table %q", table), err)
}
