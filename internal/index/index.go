// Package index implements the row keys of annotation tables.
//
// An index is an ordered list of named, typed levels plus one key tuple per
// row. Three shapes are recognised: filewise (a single "file" level),
// segmented ("file", "start" and "end") and generic (any levels).
package index

import (
	"fmt"
	"math"
	"time"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/pkg/types"
)

// Reserved level names of filewise and segmented indices.
const (
	FileLevel  = "file"
	StartLevel = "start"
	EndLevel   = "end"
)

// OpenEnd marks a segment that lasts until the end of its file.
// It is stored as a missing end value.
const OpenEnd = time.Duration(math.MinInt64)

// Kind is the shape of an index.
type Kind string

const (
	KindFilewise  Kind = "filewise"
	KindSegmented Kind = "segmented"
	KindGeneric   Kind = "misc"
)

// ParseKind converts a persisted table type into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFilewise, KindSegmented, KindGeneric:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown index kind %q", s)
}

// Level is one named, typed component of a row key.
type Level struct {
	Name  string
	DType types.DataType
}

// Index holds the levels and the aligned key values of a table.
// keys[l][r] is the value of level l in row r.
type Index struct {
	levels []Level
	keys   [][]types.Value
}

// FilewiseLevels returns the levels of a filewise index.
func FilewiseLevels() []Level {
	return []Level{{Name: FileLevel, DType: types.StringType}}
}

// SegmentedLevels returns the levels of a segmented index.
func SegmentedLevels() []Level {
	return []Level{
		{Name: FileLevel, DType: types.StringType},
		{Name: StartLevel, DType: types.TimeType},
		{Name: EndLevel, DType: types.TimeType},
	}
}

// Filewise creates a filewise index over files.
func Filewise(files []string) *Index {
	return &Index{
		levels: FilewiseLevels(),
		keys:   [][]types.Value{types.Strings(files...)},
	}
}

// Segmented creates a segmented index. A nil starts slice means every segment
// starts at zero, a nil ends slice means every segment is open ended.
// Use OpenEnd for single open ended segments.
func Segmented(files []string, starts, ends []time.Duration) (*Index, error) {
	n := len(files)
	if starts != nil && len(starts) != n {
		return nil, errors.NewLengthError("got %d starts for %d files", len(starts), n)
	}
	if ends != nil && len(ends) != n {
		return nil, errors.NewLengthError("got %d ends for %d files", len(ends), n)
	}
	startValues := make([]types.Value, n)
	endValues := make([]types.Value, n)
	for i := 0; i < n; i++ {
		startValues[i] = types.Time(0)
		if starts != nil {
			startValues[i] = types.Time(starts[i])
		}
		if ends != nil && ends[i] != OpenEnd {
			endValues[i] = types.Time(ends[i])
		}
	}
	idx := &Index{
		levels: SegmentedLevels(),
		keys:   [][]types.Value{types.Strings(files...), startValues, endValues},
	}
	if err := idx.validateSegments(); err != nil {
		return nil, err
	}
	return idx, nil
}

// New creates a generic index. One value sequence per level is required and
// values are converted to the level data types.
func New(levels []Level, values ...[]types.Value) (*Index, error) {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.Name
	}
	if err := ValidateNames(names); err != nil {
		return nil, err
	}
	if len(values) != len(levels) {
		return nil, errors.NewLevelNameError("got %d value sequences for %d levels %v", len(values), len(levels), names)
	}

	idx := &Index{
		levels: make([]Level, len(levels)),
		keys:   make([][]types.Value, len(levels)),
	}
	copy(idx.levels, levels)
	for i, l := range levels {
		if !l.DType.Valid() {
			return nil, errors.NewTypeError(fmt.Sprintf("level %q", l.Name), fmt.Errorf("%w: %q", types.ErrUnknownDataType, l.DType))
		}
		if len(values[i]) != len(values[0]) {
			return nil, errors.NewLengthError("level %q has %d values, level %q has %d",
				l.Name, len(values[i]), levels[0].Name, len(values[0]))
		}
		converted, err := types.CoerceAll(values[i], l.DType)
		if err != nil {
			return nil, errors.NewTypeError(fmt.Sprintf("level %q", l.Name), err)
		}
		idx.keys[i] = converted
	}
	if idx.Kind() == KindSegmented {
		if err := idx.validateSegments(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Empty creates an index without rows.
func Empty(levels ...Level) (*Index, error) {
	values := make([][]types.Value, len(levels))
	for i := range values {
		values[i] = []types.Value{}
	}
	return New(levels, values...)
}

// FromVectors creates a generic index whose level data types are taken from
// the vectors.
func FromVectors(names []string, vectors ...types.Vector) (*Index, error) {
	if err := ValidateNames(names); err != nil {
		return nil, err
	}
	if len(vectors) != len(names) {
		return nil, errors.NewLevelNameError("got %d value sequences for %d levels %v", len(vectors), len(names), names)
	}
	levels := make([]Level, len(names))
	values := make([][]types.Value, len(names))
	for i, v := range vectors {
		levels[i] = Level{Name: names[i], DType: v.DType}
		values[i] = v.Values
	}
	return New(levels, values...)
}

// ValidateNames checks that there is at least one level and that level names
// are non-empty and unique.
func ValidateNames(names []string) error {
	if len(names) == 0 {
		return errors.NewLevelNameError("an index needs at least one level")
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return errors.NewLevelNameError("level names must not be empty, got %q", names)
		}
		if _, ok := seen[name]; ok {
			return errors.NewLevelNameError("level names must be unique, got %q twice", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Validate checks the segments of a segmented index: every start is set and
// not negative, and no end precedes its start. Other kinds are always valid.
func (idx *Index) Validate() error {
	if idx.Kind() != KindSegmented {
		return nil
	}
	return idx.validateSegments()
}

func (idx *Index) validateSegments() error {
	starts, ends := idx.keys[1], idx.keys[2]
	for r := range starts {
		if starts[r].IsNull() {
			return errors.Newf(errors.ErrCategoryIndex, errors.CodeInvalidSegment,
				"segment %d of %q has no start", r, idx.keys[0][r])
		}
		if starts[r].AsTime() < 0 {
			return errors.Newf(errors.ErrCategoryIndex, errors.CodeInvalidSegment,
				"segment %d of %q starts before zero", r, idx.keys[0][r])
		}
		if !ends[r].IsNull() && ends[r].AsTime() < starts[r].AsTime() {
			return errors.Newf(errors.ErrCategoryIndex, errors.CodeInvalidSegment,
				"segment %d of %q ends at %s before it starts at %s", r, idx.keys[0][r], ends[r], starts[r])
		}
	}
	return nil
}

// Kind derives the shape of the index from its levels.
func (idx *Index) Kind() Kind {
	switch {
	case sameLevels(idx.levels, FilewiseLevels()):
		return KindFilewise
	case sameLevels(idx.levels, SegmentedLevels()):
		return KindSegmented
	default:
		return KindGeneric
	}
}

// Len returns the number of rows.
func (idx *Index) Len() int {
	if len(idx.keys) == 0 {
		return 0
	}
	return len(idx.keys[0])
}

// NumLevels returns the number of levels.
func (idx *Index) NumLevels() int {
	return len(idx.levels)
}

// Levels returns a copy of the levels.
func (idx *Index) Levels() []Level {
	out := make([]Level, len(idx.levels))
	copy(out, idx.levels)
	return out
}

// Names returns the level names in order.
func (idx *Index) Names() []string {
	out := make([]string, len(idx.levels))
	for i, l := range idx.levels {
		out[i] = l.Name
	}
	return out
}

// Name returns the name of a single-level index, empty otherwise.
func (idx *Index) Name() string {
	if len(idx.levels) != 1 {
		return ""
	}
	return idx.levels[0].Name
}

// HasLevel reports whether a level is called name.
func (idx *Index) HasLevel(name string) bool {
	for _, l := range idx.levels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// Vector returns a copy of the values of level i.
func (idx *Index) Vector(i int) types.Vector {
	return types.Vector{DType: idx.levels[i].DType, Values: idx.keys[i]}.Copy()
}

// Row returns the key of row r.
func (idx *Index) Row(r int) []types.Value {
	key := make([]types.Value, len(idx.keys))
	for l := range idx.keys {
		key[l] = idx.keys[l][r]
	}
	return key
}

// Take returns a new index with the rows at the given positions.
func (idx *Index) Take(rows []int) *Index {
	out := &Index{levels: idx.Levels(), keys: make([][]types.Value, len(idx.keys))}
	for l := range idx.keys {
		out.keys[l] = make([]types.Value, len(rows))
		for i, r := range rows {
			out.keys[l][i] = idx.keys[l][r]
		}
	}
	return out
}

// AppendRows returns a new index with the given keys appended. Keys must
// already be converted to the level data types.
func (idx *Index) AppendRows(keys ...[]types.Value) *Index {
	out := idx.Copy()
	for _, key := range keys {
		for l := range out.keys {
			out.keys[l] = append(out.keys[l], key[l])
		}
	}
	return out
}

// Concat returns a new index holding the rows of idx followed by the rows of
// others. All indices must have identical levels.
func (idx *Index) Concat(others ...*Index) (*Index, error) {
	out := idx.Copy()
	for _, o := range others {
		if !idx.SameLevels(o) {
			return nil, errors.NewShapeError("cannot concatenate index with levels %v to index with levels %v",
				o.levels, idx.levels)
		}
		for l := range out.keys {
			out.keys[l] = append(out.keys[l], o.keys[l]...)
		}
	}
	return out, nil
}

// Copy returns an independent copy.
func (idx *Index) Copy() *Index {
	out := &Index{levels: idx.Levels(), keys: make([][]types.Value, len(idx.keys))}
	for l, values := range idx.keys {
		out.keys[l] = make([]types.Value, len(values))
		copy(out.keys[l], values)
	}
	return out
}

// Astype returns a copy with the named levels converted to new data types.
func (idx *Index) Astype(dtypes map[string]types.DataType) (*Index, error) {
	out := idx.Copy()
	for l, level := range out.levels {
		to, ok := dtypes[level.Name]
		if !ok || to == level.DType {
			continue
		}
		v, err := types.NewVector(to, out.keys[l])
		if err != nil {
			return nil, errors.NewTypeError(fmt.Sprintf("level %q", level.Name), err)
		}
		out.levels[l].DType = to
		out.keys[l] = v.Values
	}
	return out, nil
}

// Coerce converts a candidate key to the level data types of idx.
func (idx *Index) Coerce(key []types.Value) ([]types.Value, error) {
	out := make([]types.Value, len(key))
	for l, v := range key {
		c, err := types.Coerce(v, idx.levels[l].DType)
		if err != nil {
			return nil, errors.NewTypeError(fmt.Sprintf("level %q", idx.levels[l].Name), err)
		}
		out[l] = c
	}
	return out, nil
}

// Files returns the distinct values of the file level in row order, or nil
// when the index has no file level.
func (idx *Index) Files() []string {
	for l, level := range idx.levels {
		if level.Name != FileLevel || level.DType != types.StringType {
			continue
		}
		seen := make(map[string]struct{})
		files := make([]string, 0)
		for _, v := range idx.keys[l] {
			if v.IsNull() {
				continue
			}
			if _, ok := seen[v.AsString()]; ok {
				continue
			}
			seen[v.AsString()] = struct{}{}
			files = append(files, v.AsString())
		}
		return files
	}
	return nil
}

// SameNames reports whether both indices have the same level names in the
// same order.
func (idx *Index) SameNames(o *Index) bool {
	if len(idx.levels) != len(o.levels) {
		return false
	}
	for i := range idx.levels {
		if idx.levels[i].Name != o.levels[i].Name {
			return false
		}
	}
	return true
}

// SameLevels reports whether both indices have the same level names and data
// types in the same order.
func (idx *Index) SameLevels(o *Index) bool {
	return sameLevels(idx.levels, o.levels)
}

// Equal reports whether both indices have the same levels and the same keys
// in the same order.
func (idx *Index) Equal(o *Index) bool {
	if !idx.SameLevels(o) || idx.Len() != o.Len() {
		return false
	}
	for l := range idx.keys {
		for r := range idx.keys[l] {
			if !idx.keys[l][r].Equal(o.keys[l][r]) {
				return false
			}
		}
	}
	return true
}

// String renders the level layout, e.g. [file:str start:time end:time] (3 rows).
func (idx *Index) String() string {
	s := "["
	for i, l := range idx.levels {
		if i > 0 {
			s += " "
		}
		s += l.Name + ":" + string(l.DType)
	}
	return fmt.Sprintf("%s] (%d rows)", s, idx.Len())
}

func sameLevels(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
