package codec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annotab/annotab/internal/database"
	"github.com/annotab/annotab/internal/dbtest"
	aerrors "github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/internal/header"
	"github.com/annotab/annotab/internal/index"
	"github.com/annotab/annotab/internal/storage"
	"github.com/annotab/annotab/internal/table"
	"github.com/annotab/annotab/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var formats = []Format{FormatCSV, FormatSQLite, FormatParquet}

func roundTrip(t *testing.T, db *database.Database, format Format) *database.Database {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Save(ctx, db, dir, Options{Format: format}))
	loaded, err := Load(ctx, dir, LoadOptions{LoadData: true})
	require.NoError(t, err)
	return loaded
}

func TestRoundTrip(t *testing.T) {
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			db := dbtest.Create(false)
			loaded := roundTrip(t, db, format)
			assert.True(t, db.HeaderEqual(loaded))
			for _, id := range db.TableIDs() {
				want, _ := db.Table(id)
				got, ok := loaded.Table(id)
				require.True(t, ok, id)
				assert.Equal(t, want.Kind(), got.Kind(), id)
				for _, name := range want.Columns() {
					wc, _ := want.Column(name)
					gc, ok := got.Column(name)
					require.True(t, ok, "%s.%s", id, name)
					assert.True(t, wc.Equal(gc), "%s.%s", id, name)
					assert.Equal(t, wc.DType(), gc.DType(), "%s.%s", id, name)
				}
			}
			assert.True(t, db.Equal(loaded))
		})
	}
}

func TestRoundTripMinimal(t *testing.T) {
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			db := dbtest.Create(true)
			assert.True(t, db.Equal(roundTrip(t, db, format)))
		})
	}
}

func TestRoundTripEmptyAndMissing(t *testing.T) {
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			db := dbtest.Create(true)

			empty := table.NewFilewise(nil)
			require.NoError(t, empty.SetColumn("c", table.NewColumn("", "")))
			require.NoError(t, db.SetTable("empty", empty))

			missing := table.NewFilewise([]string{"a", "b", "c"})
			c := table.NewColumn("", "")
			require.NoError(t, missing.SetColumn("c", c))
			require.NoError(t, c.Set(types.Values(nil, nil, nil)))
			require.NoError(t, db.SetTable("missing", missing))

			loaded := roundTrip(t, db, format)
			assert.True(t, db.Equal(loaded))

			got, _ := loaded.Table("empty")
			assert.Equal(t, 0, got.Len())
			assert.Equal(t, index.KindFilewise, got.Kind())

			got, _ = loaded.Table("missing")
			gc, _ := got.Column("c")
			v, _ := gc.Get()
			assert.Equal(t, types.ObjectType, v.DType)
			assert.True(t, v.AllNull())
		})
	}
}

func TestBinaryKeepsIntegers(t *testing.T) {
	for _, format := range []Format{FormatSQLite, FormatParquet} {
		t.Run(string(format), func(t *testing.T) {
			db := dbtest.Create(true)
			tb := table.NewFilewise([]string{"a", "b"})
			c := table.NewColumn("", "")
			require.NoError(t, tb.SetColumn("big", c))
			require.NoError(t, c.Set(types.Values(int64(1)<<62+1, nil)))
			require.NoError(t, db.SetTable("t", tb))

			loaded := roundTrip(t, db, format)
			got, _ := loaded.Table("t")
			gc, _ := got.Column("big")
			v, _ := gc.Get()
			assert.Equal(t, types.IntType, v.DType)
			assert.Equal(t, int64(1)<<62+1, v.Values[0].AsInt())
		})
	}
}

func TestRoundTripDatesOutsideNanosecondRange(t *testing.T) {
	dates := []time.Time{
		time.Date(1600, 3, 1, 12, 30, 0, 0, time.UTC),
		time.Date(2500, 12, 31, 23, 59, 59, 123456789, time.UTC),
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			db := dbtest.Create(true)
			tb := table.NewFilewise([]string{"a", "b", "c", "d"})
			c := table.NewColumn("", "")
			require.NoError(t, tb.SetColumn("date", c))
			require.NoError(t, c.SetVector(types.Vector{DType: types.DateType, Values: []types.Value{
				types.Date(dates[0]), types.Date(dates[1]), types.Date(dates[2]), types.Null(),
			}}))
			require.NoError(t, db.SetTable("t", tb))

			loaded := roundTrip(t, db, format)
			got, _ := loaded.Table("t")
			gc, _ := got.Column("date")
			v, _ := gc.Get()
			require.Equal(t, types.DateType, v.DType)
			for i, want := range dates {
				assert.True(t, want.Equal(v.Values[i].AsDate()), "row %d: %s", i, v.Values[i])
			}
			assert.True(t, v.Values[3].IsNull())
			assert.True(t, db.Equal(loaded))
		})
	}
}

func TestRoundTripMultiLevelIndex(t *testing.T) {
	levels := []index.Level{
		{Name: "date", DType: types.DateType},
		{Name: "flag", DType: types.BoolType},
		{Name: "score", DType: types.FloatType},
		{Name: "payload", DType: types.ObjectType},
		{Name: "offset", DType: types.TimeType},
		{Name: "n", DType: types.IntType},
		{Name: "s", DType: types.StringType},
	}
	day := time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC)
	idx, err := index.New(levels,
		[]types.Value{types.Date(day), types.Date(day.AddDate(0, 0, 1)), types.Date(day)},
		types.Values(true, false, true),
		types.Values(0.5, -1.25, 0.5),
		[]types.Value{types.Object("x"), types.Object(int64(2)), types.Object("y")},
		[]types.Value{types.Time(1500 * time.Millisecond), types.Time(0), types.Time(time.Hour)},
		types.Values(1, 2, 3),
		types.Strings("a", "b", "c"),
	)
	require.NoError(t, err)
	require.Equal(t, index.KindGeneric, idx.Kind())

	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			db := dbtest.Create(true)
			tb := table.New(idx)
			c := table.NewColumn("", "")
			require.NoError(t, tb.SetColumn("value", c))
			require.NoError(t, c.Set(types.Values("u", "v", "w")))
			require.NoError(t, db.SetTable("levels", tb))

			loaded := roundTrip(t, db, format)
			got, ok := loaded.Table("levels")
			require.True(t, ok)
			assert.Equal(t, levels, got.Levels())
			assert.True(t, tb.Equal(got))
			assert.True(t, db.Equal(loaded))
		})
	}
}

func TestRoundTripURISyntaxInTableID(t *testing.T) {
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			db := dbtest.Create(true)
			tb := table.NewFilewise([]string{"a"})
			c := table.NewColumn("", "")
			require.NoError(t, tb.SetColumn("c", c))
			require.NoError(t, c.Set(types.Values(1)))
			require.NoError(t, db.SetTable("what?mode=memory#x%20", tb))

			loaded := roundTrip(t, db, format)
			got, ok := loaded.Table("what?mode=memory#x%20")
			require.True(t, ok)
			assert.True(t, tb.Equal(got))
		})
	}
}

func TestSaveRemovesStaleBodies(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := dbtest.Create(false)

	require.NoError(t, Save(ctx, db, dir, Options{Format: FormatCSV}))
	require.FileExists(t, filepath.Join(dir, BodyFile("files", FormatCSV)))

	require.NoError(t, db.DropTables("misc"))
	require.NoError(t, Save(ctx, db, dir, Options{Format: FormatSQLite}))

	files, err := DatabaseFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"db.files.sqlite", "db.segments.sqlite", HeaderFile}, files)
}

func TestSaveHeaderOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := dbtest.Create(false)
	require.NoError(t, Save(ctx, db, dir, Options{Format: FormatCSV}))

	db.Description = "changed"
	require.NoError(t, db.SetRater("gold", &header.Rater{Type: header.RaterVote}))
	require.NoError(t, Save(ctx, db, dir, Options{Format: FormatParquet, HeaderOnly: true}))

	_, err := os.Stat(filepath.Join(dir, BodyFile("files", FormatParquet)))
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(ctx, dir, LoadOptions{LoadData: true})
	require.NoError(t, err)
	assert.Equal(t, "changed", loaded.Description)
	assert.True(t, db.Equal(loaded))
}

func TestLoadHeaderOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := dbtest.Create(false)
	require.NoError(t, Save(ctx, db, dir, Options{}))

	loaded, err := Load(ctx, dir, LoadOptions{})
	require.NoError(t, err)
	assert.True(t, db.HeaderEqual(loaded))

	want, _ := db.Table("segments")
	got, _ := loaded.Table("segments")
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, want.Columns(), got.Columns())
	assert.Equal(t, want.Levels(), got.Levels())
	c, _ := got.Column("int")
	assert.Equal(t, types.IntType, c.DType())
}

func TestLoadUpgradesObjectStrings(t *testing.T) {
	ctx := context.Background()
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			db := dbtest.Create(true)
			require.NoError(t, db.SetScheme("text", &header.Scheme{DType: types.StringType}))
			tb := table.NewFilewise([]string{"a", "b", "c"})
			c := table.NewColumn("", "")
			require.NoError(t, tb.SetColumn("c", c))
			require.NoError(t, c.SetVector(types.Vector{
				DType:  types.ObjectType,
				Values: []types.Value{types.Object("x"), types.Null(), types.Object("z")},
			}))
			require.NoError(t, db.SetTable("t", tb))
			require.NoError(t, Save(ctx, db, dir, Options{Format: format}))

			// bind the column to the string scheme in the header only
			path := filepath.Join(dir, HeaderFile)
			b, err := os.ReadFile(path)
			require.NoError(t, err)
			h, err := unmarshalHeader(b)
			require.NoError(t, err)
			h.Tables["t"].Columns[0].SchemeID = "text"
			b, err = marshalHeader(h)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, b, 0644))

			loaded, err := Load(ctx, dir, LoadOptions{LoadData: true})
			require.NoError(t, err)
			got, _ := loaded.Table("t")
			gc, _ := got.Column("c")
			v, _ := gc.Get()
			assert.Equal(t, types.StringType, v.DType)
			assert.Equal(t, []types.Value{types.String("x"), types.Null(), types.String("z")}, v.Values)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, t.TempDir(), LoadOptions{LoadData: true})
	assert.True(t, errors.Is(err, aerrors.ErrObjectNotFound))

	dir := t.TempDir()
	require.NoError(t, Save(ctx, dbtest.Create(false), dir, Options{}))
	require.NoError(t, os.Remove(filepath.Join(dir, BodyFile("misc", FormatCSV))))
	_, err = Load(ctx, dir, LoadOptions{LoadData: true})
	assert.True(t, errors.Is(err, aerrors.ErrObjectNotFound))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, HeaderFile), []byte("name: [unterminated"), 0644))
	_, err = Load(ctx, dir, LoadOptions{})
	assert.True(t, errors.Is(err, aerrors.ErrDecodeFailed))

	dir = t.TempDir()
	require.NoError(t, Save(ctx, dbtest.Create(false), dir, Options{}))
	body := filepath.Join(dir, BodyFile("misc", FormatCSV))
	require.NoError(t, os.WriteFile(body, []byte("idx,bool\nnot-a-number,True\n"), 0644))
	_, err = Load(ctx, dir, LoadOptions{LoadData: true})
	assert.True(t, errors.Is(err, aerrors.ErrDecodeFailed))
}

func TestSaveInvalidDatabase(t *testing.T) {
	db := dbtest.Create(true)
	db.Usage = "public"
	err := Save(context.Background(), db, t.TempDir(), Options{})
	assert.True(t, errors.Is(err, aerrors.ErrInvalidRecord))

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestParseBodyFile(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		format Format
		ok     bool
	}{
		{"db.files.csv", "files", FormatCSV, true},
		{"db.a.b.parquet", "a.b", FormatParquet, true},
		{"db.segments.sqlite", "segments", FormatSQLite, true},
		{"db.yaml", "", "", false},
		{"db.files.txt", "", "", false},
		{".db.files.csv.1234.tmp", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, format, ok := ParseBodyFile(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestPublishFetch(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	db := dbtest.Create(false)
	src := t.TempDir()
	require.NoError(t, Save(ctx, db, src, Options{Format: FormatParquet}))
	require.NoError(t, Publish(ctx, store, src, "dbs/unittest/1.0.0", TransferOptions{Concurrency: 2}))

	dst := t.TempDir()
	// a stale body that the published database does not have
	require.NoError(t, os.WriteFile(filepath.Join(dst, BodyFile("files", FormatCSV)), []byte("file\n"), 0644))
	require.NoError(t, Fetch(ctx, store, "dbs/unittest/1.0.0", dst, TransferOptions{Concurrency: 2}))

	files, err := DatabaseFiles(dst)
	require.NoError(t, err)
	assert.NotContains(t, files, BodyFile("files", FormatCSV))
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, len(files), "scratch directory must be removed")

	loaded, err := Load(ctx, dst, LoadOptions{LoadData: true})
	require.NoError(t, err)
	assert.True(t, db.Equal(loaded))

	// republishing a smaller database removes the objects of dropped tables
	require.NoError(t, db.DropTables("misc"))
	require.NoError(t, Save(ctx, db, src, Options{Format: FormatParquet}))
	require.NoError(t, Publish(ctx, store, src, "dbs/unittest/1.0.0", TransferOptions{}))
	exists, err := store.Exists(ctx, "dbs/unittest/1.0.0/"+BodyFile("misc", FormatParquet))
	require.NoError(t, err)
	assert.False(t, exists)

	err = Fetch(ctx, store, "dbs/missing", t.TempDir(), TransferOptions{})
	assert.True(t, errors.Is(err, aerrors.ErrObjectNotFound))
}
