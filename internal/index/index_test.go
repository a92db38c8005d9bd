package index

import (
	"errors"
	"testing"
	"time"

	aerrors "github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/pkg/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilewise(t *testing.T) {
	idx := Filewise([]string{"f1.wav", "f2.wav", "f1.wav"})
	assert.Equal(t, KindFilewise, idx.Kind())
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, FileLevel, idx.Name())
	assert.Equal(t, []string{"f1.wav", "f2.wav"}, idx.Files())

	empty := Filewise(nil)
	assert.Equal(t, KindFilewise, empty.Kind())
	assert.Equal(t, 0, empty.Len())
}

func TestSegmented(t *testing.T) {
	idx, err := Segmented(
		[]string{"f1", "f1", "f2"},
		[]time.Duration{0, time.Second, 0},
		[]time.Duration{time.Second, OpenEnd, 2 * time.Second},
	)
	require.NoError(t, err)
	assert.Equal(t, KindSegmented, idx.Kind())
	assert.Equal(t, []string{FileLevel, StartLevel, EndLevel}, idx.Names())
	assert.Equal(t, "", idx.Name())
	assert.True(t, idx.Row(1)[2].IsNull())
	assert.Equal(t, time.Second, idx.Row(1)[1].AsTime())

	open, err := Segmented([]string{"a", "b"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), open.Row(0)[1].AsTime())
	assert.True(t, open.Row(1)[2].IsNull())
}

func TestSegmentedInvalid(t *testing.T) {
	_, err := Segmented([]string{"a"}, []time.Duration{2 * time.Second}, []time.Duration{time.Second})
	assert.True(t, errors.Is(err, aerrors.New(aerrors.ErrCategoryIndex, aerrors.CodeInvalidSegment, "")))

	_, err = Segmented([]string{"a"}, []time.Duration{-time.Second}, nil)
	assert.True(t, errors.Is(err, aerrors.ErrInvalidSegment))

	_, err = Segmented([]string{"a", "b"}, []time.Duration{0}, nil)
	assert.True(t, errors.Is(err, aerrors.ErrLengthMismatch))

	// segments built through the generic constructor are checked as well
	_, err = New(SegmentedLevels(), types.Strings("a"), []types.Value{types.Null()}, []types.Value{types.Null()})
	assert.True(t, errors.Is(err, aerrors.ErrInvalidSegment))
}

func TestNewLevelNames(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"no levels", nil},
		{"unnamed level", []string{""}},
		{"empty second level", []string{"idx", ""}},
		{"duplicate levels", []string{"idx", "idx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vectors := make([]types.Vector, len(tt.names))
			for i := range vectors {
				vectors[i] = types.VectorOf(1, 2)
			}
			_, err := FromVectors(tt.names, vectors...)
			assert.True(t, errors.Is(err, aerrors.ErrInvalidLevelName), "got %v", err)
		})
	}

	_, err := FromVectors([]string{"a", "b"}, types.VectorOf(1))
	assert.True(t, errors.Is(err, aerrors.ErrInvalidLevelName))

	_, err = New([]Level{{Name: "a", DType: types.IntType}})
	assert.True(t, errors.Is(err, aerrors.ErrInvalidLevelName))
}

func TestNewGeneric(t *testing.T) {
	idx, err := New(
		[]Level{{Name: "idx", DType: types.IntType}, {Name: "label", DType: types.StringType}},
		types.Values(0, 1.0),
		types.Values("a", "b"),
	)
	require.NoError(t, err)
	assert.Equal(t, KindGeneric, idx.Kind())
	assert.Equal(t, types.IntType, idx.Row(1)[0].Type())
	assert.Nil(t, idx.Files())

	_, err = New([]Level{{Name: "idx", DType: types.IntType}}, types.Values(0.5))
	assert.True(t, errors.Is(err, aerrors.ErrTypeMismatch))

	_, err = New(
		[]Level{{Name: "a", DType: types.IntType}, {Name: "b", DType: types.IntType}},
		types.Values(0, 1),
		types.Values(0),
	)
	assert.True(t, errors.Is(err, aerrors.ErrLengthMismatch))

	_, err = New([]Level{{Name: "a", DType: "complex"}}, types.Values(0))
	assert.True(t, errors.Is(err, aerrors.ErrTypeMismatch))
}

func TestEmptyAndAstype(t *testing.T) {
	idx, err := Empty(Level{Name: "idx", DType: types.ObjectType})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	converted, err := idx.Astype(map[string]types.DataType{"idx": types.IntType})
	require.NoError(t, err)
	assert.Equal(t, types.IntType, converted.Levels()[0].DType)
	assert.Equal(t, types.ObjectType, idx.Levels()[0].DType)
}

func TestTakeConcatCopy(t *testing.T) {
	idx := Filewise([]string{"a", "b", "c"})
	taken := idx.Take([]int{2, 0})
	assert.Equal(t, "c", taken.Row(0)[0].AsString())
	assert.Equal(t, "a", taken.Row(1)[0].AsString())

	joined, err := idx.Concat(taken)
	require.NoError(t, err)
	assert.Equal(t, 5, joined.Len())

	seg, err := Segmented([]string{"a"}, nil, nil)
	require.NoError(t, err)
	_, err = idx.Concat(seg)
	assert.True(t, errors.Is(err, aerrors.ErrShapeMismatch))

	c := idx.Copy()
	assert.True(t, c.Equal(idx))
	c = c.AppendRows(types.Strings("d"))
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 4, c.Len())
}

func TestSameLevels(t *testing.T) {
	a, err := New([]Level{{Name: "idx", DType: types.IntType}}, types.Values(1))
	require.NoError(t, err)
	b, err := New([]Level{{Name: "idx", DType: types.StringType}}, types.Values("1"))
	require.NoError(t, err)
	assert.True(t, a.SameNames(b))
	assert.False(t, a.SameLevels(b))
	assert.False(t, a.SameNames(Filewise(nil)))
}

func TestKeySet(t *testing.T) {
	idx, err := New(
		[]Level{{Name: "a", DType: types.StringType}, {Name: "b", DType: types.FloatType}},
		[]types.Value{types.String("x"), types.String("x"), types.Null(), types.String("x")},
		[]types.Value{types.Float(0), types.Null(), types.Null(), types.Float(0)},
	)
	require.NoError(t, err)
	s := KeySetOf(idx)
	assert.Equal(t, 3, s.Len())

	pos, ok := s.Find([]types.Value{types.String("x"), types.Float(0)})
	assert.True(t, ok)
	assert.Equal(t, 0, pos)

	_, ok = s.Find([]types.Value{types.Null(), types.Null()})
	assert.True(t, ok)

	_, added := s.Add([]types.Value{types.String("x"), types.Float(-0.0)})
	assert.False(t, added)

	assert.False(t, s.Contains([]types.Value{types.String("y"), types.Float(0)}))
}

func TestProperty_KeySetMatchesLinearSearch(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("key set finds exactly the keys of its index", prop.ForAll(
		func(picks []int, probe int) bool {
			files := make([]string, len(picks))
			for i, p := range picks {
				files[i] = string(rune('a' + p))
			}
			s := KeySetOf(Filewise(files))
			want := false
			for _, f := range files {
				if f == string(rune('a'+probe)) {
					want = true
				}
			}
			return s.Contains(types.Strings(string(rune('a'+probe)))) == want
		},
		gen.SliceOf(gen.IntRange(0, 4)),
		gen.IntRange(0, 5),
	))

	properties.Property("equal keys have equal fingerprints", prop.ForAll(
		func(n int64, f float64, s string) bool {
			a := []types.Value{types.Int(n), types.Float(f), types.String(s)}
			b := []types.Value{types.Int(n), types.Float(f), types.String(s)}
			return Fingerprint(a) == Fingerprint(b)
		},
		gen.Int64(),
		gen.Float64(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
