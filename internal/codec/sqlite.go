package codec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/annotab/annotab/pkg/types"
	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteBody stores a table as a SQLite file. Field i is column c<i> of the
// data table, the field names and exact data types are kept in
// _annotab_dtypes. Booleans and times (nanoseconds) are INTEGER, dates are
// RFC 3339 TEXT, objects are snappy compressed JSON blobs.
type sqliteBody struct{}

const (
	sqliteDataTable   = "data"
	sqliteDTypesTable = "_annotab_dtypes"
)

func sqliteColumn(i int) string {
	return fmt.Sprintf("c%d", i)
}

func sqliteDeclType(d types.DataType) string {
	switch d {
	case types.IntType, types.BoolType, types.TimeType:
		return "INTEGER"
	case types.FloatType:
		return "REAL"
	case types.StringType, types.DateType:
		return "TEXT"
	default:
		return "BLOB"
	}
}

// sqliteDSN turns path into a file URI so that characters like '?' or '#'
// in file names are not taken for URI syntax.
func sqliteDSN(path, query string) string {
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: query}
	return u.String()
}

func (sqliteBody) write(ctx context.Context, path string, f *frame) error {
	db, err := sql.Open("sqlite3", sqliteDSN(path, ""))
	if err != nil {
		return fmt.Errorf("failed to create SQLite database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}

	defs := make([]string, len(f.vectors))
	placeholders := make([]string, len(f.vectors))
	for i, v := range f.vectors {
		defs[i] = fmt.Sprintf("%s %s", sqliteColumn(i), sqliteDeclType(v.DType))
		placeholders[i] = "?"
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", sqliteDataTable, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create data table: %w", err)
	}
	dtypesSQL := fmt.Sprintf(`
		CREATE TABLE %s (
			position INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			dtype TEXT NOT NULL
		)`, sqliteDTypesTable)
	if _, err := db.ExecContext(ctx, dtypesSQL); err != nil {
		return fmt.Errorf("failed to create dtypes table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, v := range f.vectors {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (position, name, dtype) VALUES (?, ?, ?)", sqliteDTypesTable),
			i, f.names[i], string(v.DType)); err != nil {
			return fmt.Errorf("failed to record dtype of %q: %w", f.names[i], err)
		}
	}

	if len(f.vectors) > 0 {
		insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", sqliteDataTable, strings.Join(placeholders, ", "))
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(f.vectors))
		for r := 0; r < f.rows(); r++ {
			for i, v := range f.vectors {
				arg, err := sqliteValue(v.Values[r])
				if err != nil {
					return fmt.Errorf("field %q row %d: %w", f.names[i], r, err)
				}
				args[i] = arg
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	// Checkpoint WAL and switch to DELETE mode so the file stands alone
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode to DELETE: %w", err)
	}
	return db.Close()
}

func sqliteValue(v types.Value) (any, error) {
	switch v.Type() {
	case "":
		return nil, nil
	case types.IntType, types.TimeType, types.BoolType:
		if v.Type() == types.BoolType {
			if v.AsBool() {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return v.AsInt(), nil
	case types.FloatType:
		return v.AsFloat(), nil
	case types.StringType:
		return v.AsString(), nil
	case types.DateType:
		return types.FormatText(v)
	default:
		payload, err := json.Marshal(v.AsObject())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal object: %w", err)
		}
		return snappy.Encode(nil, payload), nil
	}
}

func (sqliteBody) read(ctx context.Context, path string, _ []types.DataType) (*frame, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path, "mode=ro&_query_only=true"))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite body: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT name, dtype FROM %s ORDER BY position", sqliteDTypesTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query dtypes: %w", err)
	}
	f := &frame{}
	for rows.Next() {
		var name, dtype string
		if err := rows.Scan(&name, &dtype); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan dtype: %w", err)
		}
		d, err := types.ParseDataType(dtype)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		f.names = append(f.names, name)
		f.vectors = append(f.vectors, types.Vector{DType: d, Values: []types.Value{}})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating dtypes: %w", err)
	}
	rows.Close()
	if len(f.vectors) == 0 {
		return f, nil
	}

	cols := make([]string, len(f.vectors))
	for i := range cols {
		cols[i] = sqliteColumn(i)
	}
	rows, err = db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), sqliteDataTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	defer rows.Close()

	cells := make([]any, len(f.vectors))
	dest := make([]any, len(f.vectors))
	for i := range dest {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i := range f.vectors {
			v, err := sqliteDecode(cells[i], f.vectors[i].DType)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.names[i], err)
			}
			f.vectors[i].Values = append(f.vectors[i].Values, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return f, nil
}

func sqliteDecode(cell any, dtype types.DataType) (types.Value, error) {
	if cell == nil {
		return types.Null(), nil
	}
	switch x := cell.(type) {
	case int64:
		switch dtype {
		case types.BoolType:
			return types.Bool(x != 0), nil
		case types.DateType:
			// integer dates are Unix nanoseconds
			return types.Date(time.Unix(0, x).UTC()), nil
		case types.TimeType:
			return types.Time(time.Duration(x)), nil
		}
		return types.Coerce(types.Int(x), dtype)
	case float64:
		return types.Coerce(types.Float(x), dtype)
	case string:
		if dtype == types.DateType {
			return types.ParseText(x, dtype)
		}
		return types.Coerce(types.String(x), dtype)
	case time.Time:
		return types.Coerce(types.Date(x), dtype)
	case []byte:
		switch dtype {
		case types.StringType:
			return types.String(string(x)), nil
		case types.DateType:
			return types.ParseText(string(x), dtype)
		}
		payload, err := snappy.Decode(nil, x)
		if err != nil {
			return types.Value{}, fmt.Errorf("failed to decompress object: %w", err)
		}
		return types.DecodeObject(payload)
	}
	return types.Value{}, fmt.Errorf("unexpected SQLite value of type %T", cell)
}
