// Package table implements annotation tables: an index plus an ordered set of
// named columns, and the structural algebra over them (merge, pick, drop,
// extend and equality).
package table

import (
	"fmt"
	"sort"
	"time"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/internal/header"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/pkg/types"
)

// SchemeResolver looks up schemes and raters by id. A database installs
// itself as the resolver of the tables it owns.
type SchemeResolver interface {
	Scheme(id string) (*header.Scheme, bool)
	Rater(id string) (*header.Rater, bool)
}

// Table associates an index with named columns.
type Table struct {
	SplitID     string
	MediaID     string
	Description string
	Meta        map[string]any

	index   *index.Index
	columns []*Column
	schemes SchemeResolver
}

// New creates a table without columns over a copy of idx.
func New(idx *index.Index) *Table {
	return &Table{index: idx.Copy()}
}

// NewFilewise creates a table over a filewise index.
func NewFilewise(files []string) *Table {
	return &Table{index: index.Filewise(files)}
}

// NewSegmented creates a table over a segmented index.
func NewSegmented(files []string, starts, ends []time.Duration) (*Table, error) {
	idx, err := index.Segmented(files, starts, ends)
	if err != nil {
		return nil, err
	}
	return &Table{index: idx}, nil
}

// SetSchemeResolver installs the resolver used for the schemes of columns.
func (t *Table) SetSchemeResolver(r SchemeResolver) {
	t.schemes = r
}

// Index returns a copy of the index.
func (t *Table) Index() *index.Index {
	return t.index.Copy()
}

// Kind returns the shape of the index.
func (t *Table) Kind() index.Kind {
	return t.index.Kind()
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.index.Len()
}

// Levels returns the index levels.
func (t *Table) Levels() []index.Level {
	return t.index.Levels()
}

// Files returns the distinct files of a filewise or segmented table.
func (t *Table) Files() []string {
	return t.index.Files()
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Column returns the column called name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// SetColumn assigns c under name, replacing a column of the same name in
// place. A column without data is filled with missing values. A column that
// already belongs to another table is copied.
func (t *Table) SetColumn(name string, c *Column) error {
	if name == "" {
		return errors.New(errors.ErrCategoryTable, errors.CodeNameCollision, "column name must not be empty")
	}
	if t.index.HasLevel(name) {
		return errors.Newf(errors.ErrCategoryTable, errors.CodeNameCollision,
			"column name %q is already used by an index level", name)
	}
	if err := t.checkBindings(c); err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	if c.table != nil && (c.table != t || c.name != name) {
		c = c.copyDetached()
	}

	// validate on a detached copy so that a failure leaves t and c untouched
	candidate := &Column{
		SchemeID:    c.SchemeID,
		RaterID:     c.RaterID,
		Description: c.Description,
		Meta:        c.Meta,
		name:        name,
		table:       t,
	}
	if c.values != nil {
		if err := candidate.SetVector(*c.values); err != nil {
			return err
		}
	} else {
		v := types.NullVector(candidate.DType(), t.Len())
		candidate.values = &v
	}

	c.name, c.table, c.values = name, t, candidate.values
	for i, existing := range t.columns {
		if existing.name == name {
			if existing != c {
				existing.table = nil
			}
			t.columns[i] = c
			return nil
		}
	}
	t.columns = append(t.columns, c)
	return nil
}

// checkBindings verifies that the scheme and rater of c are known to the
// resolver. Tables without a resolver accept any id.
func (t *Table) checkBindings(c *Column) error {
	if t.schemes == nil {
		return nil
	}
	if c.SchemeID != "" {
		if _, ok := t.schemes.Scheme(c.SchemeID); !ok {
			return errors.NewReferentialError("scheme %q does not exist", c.SchemeID)
		}
	}
	if c.RaterID != "" {
		if _, ok := t.schemes.Rater(c.RaterID); !ok {
			return errors.NewReferentialError("rater %q does not exist", c.RaterID)
		}
	}
	return nil
}

// DropColumns removes the named columns.
func (t *Table) DropColumns(names ...string) error {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := t.Column(name); !ok {
			return errors.Newf(errors.ErrCategoryTable, errors.CodeShapeMismatch, "table has no column %q", name)
		}
		drop[name] = struct{}{}
	}
	kept := t.columns[:0]
	for _, c := range t.columns {
		if _, ok := drop[c.name]; ok {
			c.table = nil
			continue
		}
		kept = append(kept, c)
	}
	t.columns = kept
	return nil
}

// Get returns a copy of the index together with copies of the named column
// vectors, all columns when no name is given.
func (t *Table) Get(names ...string) (*index.Index, []types.Vector, error) {
	if len(names) == 0 {
		names = t.Columns()
	}
	vectors := make([]types.Vector, len(names))
	for i, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, nil, errors.Newf(errors.ErrCategoryTable, errors.CodeShapeMismatch, "table has no column %q", name)
		}
		vectors[i] = c.vector().Copy()
	}
	return t.index.Copy(), vectors, nil
}

// SchemeIDs returns the sorted distinct scheme ids bound by the columns.
func (t *Table) SchemeIDs() []string {
	return t.columnRefs(func(c *Column) string { return c.SchemeID })
}

// RaterIDs returns the sorted distinct rater ids bound by the columns.
func (t *Table) RaterIDs() []string {
	return t.columnRefs(func(c *Column) string { return c.RaterID })
}

func (t *Table) columnRefs(ref func(*Column) string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range t.columns {
		id := ref(c)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Conform converts every column bound to a scheme to the scheme's data type
// and checks its constraints. Nothing changes when a column fails.
func (t *Table) Conform() error {
	converted := make([]types.Vector, len(t.columns))
	for i, c := range t.columns {
		v, err := c.check(c.vector())
		if err != nil {
			return err
		}
		converted[i] = v
	}
	for i, c := range t.columns {
		v := converted[i]
		c.values = &v
	}
	return nil
}

// Copy returns a deep copy sharing only the scheme resolver.
func (t *Table) Copy() *Table {
	out := t.shell(t.index.Copy())
	for _, c := range t.columns {
		cc := c.copyDetached()
		cc.table = out
		out.columns = append(out.columns, cc)
	}
	return out
}

// shell returns a table with t's metadata over idx and no columns.
func (t *Table) shell(idx *index.Index) *Table {
	return &Table{
		SplitID:     t.SplitID,
		MediaID:     t.MediaID,
		Description: t.Description,
		Meta:        header.CopyMeta(t.Meta),
		index:       idx,
		schemes:     t.schemes,
	}
}

// take returns a new table holding the given rows.
func (t *Table) take(rows []int) *Table {
	out := t.shell(t.index.Take(rows))
	for _, c := range t.columns {
		cc := c.copyDetached()
		v := c.vector().Take(rows)
		cc.values = &v
		cc.table = out
		out.columns = append(out.columns, cc)
	}
	return out
}

// String summarises the table layout.
func (t *Table) String() string {
	return fmt.Sprintf("%s table %s columns %v", t.Kind(), t.index, t.Columns())
}

// PrepareScheme converts the columns bound to schemeID to s without changing
// them. The returned function applies the conversion, so a caller can check
// several tables before committing any of them.
func (t *Table) PrepareScheme(schemeID string, s *header.Scheme) (apply func(), err error) {
	var bound []*Column
	var converted []types.Vector
	for _, c := range t.columns {
		if c.SchemeID != schemeID {
			continue
		}
		v, err := s.CheckVector(c.name, c.vector())
		if err != nil {
			return nil, err
		}
		bound = append(bound, c)
		converted = append(converted, v)
	}
	return func() {
		for i, c := range bound {
			v := converted[i]
			c.values = &v
		}
	}, nil
}
