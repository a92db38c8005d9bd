// Package database implements annotation databases: a set of tables plus the
// schemes, raters, media and splits their columns and tables refer to.
package database

import (
	"fmt"
	"sort"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/internal/header"
	"github.com/annotab/annotab/internal/table"
)

// Database owns tables and the metadata records they reference by id.
// Every reference held by a table or column resolves to a record of the
// database. A Database is not safe for concurrent mutation.
type Database struct {
	Name        string         `yaml:"name" validate:"required"`
	Source      string         `yaml:"source,omitempty"`
	Usage       string         `yaml:"usage" validate:"required,oneof=commercial other research restricted unrestricted"`
	Languages   []string       `yaml:"languages,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Meta        map[string]any `yaml:"meta,omitempty"`

	schemes map[string]*header.Scheme
	raters  map[string]*header.Rater
	media   map[string]*header.Media
	splits  map[string]*header.Split
	tables  map[string]*table.Table
}

// New creates an empty database with unrestricted usage.
func New(name string) *Database {
	return &Database{
		Name:    name,
		Usage:   header.UsageUnrestricted,
		schemes: make(map[string]*header.Scheme),
		raters:  make(map[string]*header.Rater),
		media:   make(map[string]*header.Media),
		splits:  make(map[string]*header.Split),
		tables:  make(map[string]*table.Table),
	}
}

// Scheme returns the scheme registered under id.
func (db *Database) Scheme(id string) (*header.Scheme, bool) {
	s, ok := db.schemes[id]
	return s, ok
}

// Rater returns the rater registered under id.
func (db *Database) Rater(id string) (*header.Rater, bool) {
	r, ok := db.raters[id]
	return r, ok
}

// Media returns the media record registered under id.
func (db *Database) Media(id string) (*header.Media, bool) {
	m, ok := db.media[id]
	return m, ok
}

// Split returns the split registered under id.
func (db *Database) Split(id string) (*header.Split, bool) {
	s, ok := db.splits[id]
	return s, ok
}

// Table returns the table registered under id.
func (db *Database) Table(id string) (*table.Table, bool) {
	t, ok := db.tables[id]
	return t, ok
}

// SchemeIDs returns the sorted scheme ids.
func (db *Database) SchemeIDs() []string { return sortedKeys(db.schemes) }

// RaterIDs returns the sorted rater ids.
func (db *Database) RaterIDs() []string { return sortedKeys(db.raters) }

// MediaIDs returns the sorted media ids.
func (db *Database) MediaIDs() []string { return sortedKeys(db.media) }

// SplitIDs returns the sorted split ids.
func (db *Database) SplitIDs() []string { return sortedKeys(db.splits) }

// TableIDs returns the sorted table ids.
func (db *Database) TableIDs() []string { return sortedKeys(db.tables) }

// SetScheme registers s under id. Replacing a scheme converts the columns
// bound to it; nothing changes if any of them does not fit the new scheme.
func (db *Database) SetScheme(id string, s *header.Scheme) error {
	if id == "" {
		return errors.New(errors.ErrCategoryValidation, errors.CodeInvalidRecord, "scheme id must not be empty")
	}
	s.Normalize()
	if err := header.Validate(s); err != nil {
		return err
	}
	var applies []func()
	for _, tid := range db.TableIDs() {
		apply, err := db.tables[tid].PrepareScheme(id, s)
		if err != nil {
			return fmt.Errorf("table %q: %w", tid, err)
		}
		applies = append(applies, apply)
	}
	db.schemes[id] = s
	for _, apply := range applies {
		apply()
	}
	return nil
}

// SetRater registers r under id.
func (db *Database) SetRater(id string, r *header.Rater) error {
	if err := validateRecord("rater", id, r); err != nil {
		return err
	}
	db.raters[id] = r
	return nil
}

// SetMedia registers m under id.
func (db *Database) SetMedia(id string, m *header.Media) error {
	if err := validateRecord("media", id, m); err != nil {
		return err
	}
	db.media[id] = m
	return nil
}

// SetSplit registers s under id.
func (db *Database) SetSplit(id string, s *header.Split) error {
	if err := validateRecord("split", id, s); err != nil {
		return err
	}
	db.splits[id] = s
	return nil
}

func validateRecord(kind, id string, record any) error {
	if id == "" {
		return errors.Newf(errors.ErrCategoryValidation, errors.CodeInvalidRecord, "%s id must not be empty", kind)
	}
	return header.Validate(record)
}

// RemoveScheme removes a scheme no column refers to.
func (db *Database) RemoveScheme(id string) error {
	if users := db.users(func(t *table.Table) []string { return t.SchemeIDs() }, id); len(users) > 0 {
		return errors.NewReferentialError("scheme %q is used by tables %v", id, users)
	}
	delete(db.schemes, id)
	return nil
}

// RemoveRater removes a rater no column refers to.
func (db *Database) RemoveRater(id string) error {
	if users := db.users(func(t *table.Table) []string { return t.RaterIDs() }, id); len(users) > 0 {
		return errors.NewReferentialError("rater %q is used by tables %v", id, users)
	}
	delete(db.raters, id)
	return nil
}

// RemoveMedia removes a media record no table refers to.
func (db *Database) RemoveMedia(id string) error {
	if users := db.users(func(t *table.Table) []string { return []string{t.MediaID} }, id); len(users) > 0 {
		return errors.NewReferentialError("media %q is used by tables %v", id, users)
	}
	delete(db.media, id)
	return nil
}

// RemoveSplit removes a split no table refers to.
func (db *Database) RemoveSplit(id string) error {
	if users := db.users(func(t *table.Table) []string { return []string{t.SplitID} }, id); len(users) > 0 {
		return errors.NewReferentialError("split %q is used by tables %v", id, users)
	}
	delete(db.splits, id)
	return nil
}

// users returns the sorted ids of the tables referring to id.
func (db *Database) users(refs func(*table.Table) []string, id string) []string {
	var out []string
	for _, tid := range db.TableIDs() {
		for _, ref := range refs(db.tables[tid]) {
			if ref == id {
				out = append(out, tid)
				break
			}
		}
	}
	return out
}

// SetTable registers t under id. Every split, media, scheme and rater the
// table refers to must exist; columns bound to a scheme are converted to it.
// The database and the table are unchanged on error.
func (db *Database) SetTable(id string, t *table.Table) error {
	if id == "" {
		return errors.New(errors.ErrCategoryValidation, errors.CodeInvalidRecord, "table id must not be empty")
	}
	if err := db.checkRefs(t); err != nil {
		return fmt.Errorf("table %q: %w", id, err)
	}
	var applies []func()
	for _, sid := range t.SchemeIDs() {
		apply, err := t.PrepareScheme(sid, db.schemes[sid])
		if err != nil {
			return fmt.Errorf("table %q: %w", id, err)
		}
		applies = append(applies, apply)
	}
	for _, apply := range applies {
		apply()
	}
	t.SetSchemeResolver(db)
	db.tables[id] = t
	return nil
}

// checkRefs verifies that every id t refers to is registered.
func (db *Database) checkRefs(t *table.Table) error {
	if t.SplitID != "" {
		if _, ok := db.splits[t.SplitID]; !ok {
			return errors.NewReferentialError("split %q does not exist", t.SplitID)
		}
	}
	if t.MediaID != "" {
		if _, ok := db.media[t.MediaID]; !ok {
			return errors.NewReferentialError("media %q does not exist", t.MediaID)
		}
	}
	for _, sid := range t.SchemeIDs() {
		if _, ok := db.schemes[sid]; !ok {
			return errors.NewReferentialError("scheme %q does not exist", sid)
		}
	}
	for _, rid := range t.RaterIDs() {
		if _, ok := db.raters[rid]; !ok {
			return errors.NewReferentialError("rater %q does not exist", rid)
		}
	}
	return nil
}

// Validate checks the database fields and the references of every table.
// Columns added to a registered table are not checked until then.
func (db *Database) Validate() error {
	if err := header.Validate(db); err != nil {
		return err
	}
	for _, tid := range db.TableIDs() {
		if err := db.checkRefs(db.tables[tid]); err != nil {
			return fmt.Errorf("table %q: %w", tid, err)
		}
	}
	return nil
}

// DropTables removes the given tables.
func (db *Database) DropTables(ids ...string) error {
	for _, id := range ids {
		if _, ok := db.tables[id]; !ok {
			return errors.Newf(errors.ErrCategoryDatabase, errors.CodeTableNotFound, "table %q does not exist", id)
		}
	}
	for _, id := range ids {
		db.tables[id].SetSchemeResolver(nil)
		delete(db.tables, id)
	}
	return nil
}

// Files returns the sorted distinct files of all filewise and segmented
// tables.
func (db *Database) Files() []string {
	seen := make(map[string]struct{})
	var files []string
	for _, t := range db.tables {
		for _, f := range t.Files() {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}

// Copy returns a deep copy. The tables of the copy resolve schemes through
// the copy.
func (db *Database) Copy() *Database {
	out := New(db.Name)
	out.Source = db.Source
	out.Usage = db.Usage
	out.Languages = append([]string(nil), db.Languages...)
	out.Description = db.Description
	out.Meta = header.CopyMeta(db.Meta)
	for id, s := range db.schemes {
		out.schemes[id] = s.Copy()
	}
	for id, r := range db.raters {
		out.raters[id] = r.Copy()
	}
	for id, m := range db.media {
		out.media[id] = m.Copy()
	}
	for id, s := range db.splits {
		out.splits[id] = s.Copy()
	}
	for id, t := range db.tables {
		c := t.Copy()
		c.SetSchemeResolver(out)
		out.tables[id] = c
	}
	return out
}

// HeaderEqual reports whether both databases have the same fields and
// metadata records, ignoring table contents.
func (db *Database) HeaderEqual(o *Database) bool {
	if db.Name != o.Name || db.Source != o.Source || db.Usage != o.Usage ||
		db.Description != o.Description || !header.MetaEqual(db.Meta, o.Meta) {
		return false
	}
	if len(db.Languages) != len(o.Languages) {
		return false
	}
	for i := range db.Languages {
		if db.Languages[i] != o.Languages[i] {
			return false
		}
	}
	return recordsEqual(db.schemes, o.schemes, (*header.Scheme).Equal) &&
		recordsEqual(db.raters, o.raters, (*header.Rater).Equal) &&
		recordsEqual(db.media, o.media, (*header.Media).Equal) &&
		recordsEqual(db.splits, o.splits, (*header.Split).Equal)
}

// Equal reports whether both headers are equal and every table is equal.
func (db *Database) Equal(o *Database) bool {
	if !db.HeaderEqual(o) {
		return false
	}
	return recordsEqual(db.tables, o.tables, (*table.Table).Equal)
}

func recordsEqual[T any](a, b map[string]T, equal func(T, T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id, x := range a {
		y, ok := b[id]
		if !ok || !equal(x, y) {
			return false
		}
	}
	return true
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
