// Package codec persists databases to a directory: a YAML header db.yaml plus
// one body file per table, db.<table>.<ext>, in a text (CSV) or a binary
// (SQLite, Parquet) encoding.
package codec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/annotab/annotab/internal/database"
	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderFile is the name of the header within a database directory.
const HeaderFile = "db.yaml"

// Format is the encoding of table bodies.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatSQLite  Format = "sqlite"
	FormatParquet Format = "parquet"
)

// loadOrder lists the body formats in order of preference when loading.
var loadOrder = []Format{FormatParquet, FormatSQLite, FormatCSV}

// ParseFormat converts a format name, the empty string means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatSQLite:
		return FormatSQLite, nil
	case FormatParquet:
		return FormatParquet, nil
	}
	return "", errors.Newf(errors.ErrCategoryValidation, errors.CodeInvalidConfig, "unknown format %q", s)
}

// Binary reports whether the format stores native types.
func (f Format) Binary() bool {
	return f == FormatSQLite || f == FormatParquet
}

// body encodes and decodes table bodies of one format.
type body interface {
	write(ctx context.Context, path string, f *frame) error
	// read decodes the body at path. dtypes are the data types recorded in
	// the header, used by formats that do not store their own.
	read(ctx context.Context, path string, dtypes []types.DataType) (*frame, error)
}

func bodyFor(f Format) body {
	switch f {
	case FormatSQLite:
		return sqliteBody{}
	case FormatParquet:
		return parquetBody{}
	default:
		return csvBody{}
	}
}

// BodyFile returns the name of the body file of a table.
func BodyFile(tableID string, f Format) string {
	return fmt.Sprintf("db.%s.%s", tableID, f)
}

// Options control Save.
type Options struct {
	// Format of the table bodies, CSV when empty.
	Format Format
	// HeaderOnly rewrites db.yaml and leaves the bodies untouched.
	HeaderOnly bool
}

// LoadOptions control Load.
type LoadOptions struct {
	// LoadData reads the table bodies. Without it every table is loaded
	// with its levels and columns but no rows.
	LoadData bool
}

// Save writes db to dir. Every file is written to a temporary name first and
// renamed into place. Bodies of the same table in another format are removed,
// as are bodies of tables db no longer has.
func Save(ctx context.Context, db *database.Database, dir string, opts Options) error {
	logger := zerolog.Ctx(ctx).With().Str("dir", dir).Logger()
	if err := db.Validate(); err != nil {
		return err
	}
	format := opts.Format
	if format == "" {
		format = FormatCSV
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStorageError(errors.CodeEncodeFailed, "failed to create database directory", err)
	}

	s := time.Now()
	if !opts.HeaderOnly {
		b := bodyFor(format)
		for _, id := range db.TableIDs() {
			t, _ := db.Table(id)
			f, err := tableFrame(t)
			if err != nil {
				return encodeError(id, err)
			}
			path := filepath.Join(dir, BodyFile(id, format))
			if err := writeAtomic(path, func(tmp string) error { return b.write(ctx, tmp, f) }); err != nil {
				return encodeError(id, err)
			}
			logger.Debug().Str("table", id).Str("format", string(format)).Int("rows", f.rows()).Msg("wrote table body")
		}
		if err := removeStaleBodies(dir, db, format); err != nil {
			return errors.NewStorageError(errors.CodeEncodeFailed, "failed to remove stale bodies", err)
		}
	}

	hb, err := marshalHeader(encodeHeader(db))
	if err != nil {
		return errors.NewStorageError(errors.CodeEncodeFailed, "failed to encode header", err)
	}
	err = writeAtomic(filepath.Join(dir, HeaderFile), func(tmp string) error {
		return os.WriteFile(tmp, hb, 0644)
	})
	if err != nil {
		return errors.NewStorageError(errors.CodeEncodeFailed, "failed to write header", err)
	}
	logger.Debug().Int("tables", len(db.TableIDs())).Bool("header_only", opts.HeaderOnly).
		Msgf("saved database in %s", time.Since(s))
	return nil
}

// Load reads the database persisted in dir. For every table the first body
// found in the order parquet, sqlite, csv is decoded.
func Load(ctx context.Context, dir string, opts LoadOptions) (*database.Database, error) {
	logger := zerolog.Ctx(ctx).With().Str("dir", dir).Logger()
	s := time.Now()
	hb, err := os.ReadFile(filepath.Join(dir, HeaderFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewStorageError(errors.CodeObjectNotFound, fmt.Sprintf("no %s in %s", HeaderFile, dir), err)
		}
		return nil, errors.NewStorageError(errors.CodeDecodeFailed, "failed to read header", err)
	}
	h, err := unmarshalHeader(hb)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeDecodeFailed, "failed to decode header", err)
	}
	db, err := decodeRecords(h)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeDecodeFailed, "invalid header", err)
	}

	for _, id := range sortedKeys(h.Tables) {
		th := h.Tables[id]
		var f *frame
		if opts.LoadData {
			path, format, ok := FindBody(dir, id)
			if !ok {
				return nil, errors.NewStorageError(errors.CodeObjectNotFound, fmt.Sprintf("table %q has no body in %s", id, dir), nil)
			}
			f, err = bodyFor(format).read(ctx, path, th.dtypes())
			if err != nil {
				return nil, decodeError(id, err)
			}
			logger.Debug().Str("table", id).Str("format", string(format)).Int("rows", f.rows()).Msg("read table body")
		}
		t, err := decodeTable(db, id, th, f)
		if err != nil {
			return nil, err
		}
		if err := db.SetTable(id, t); err != nil {
			return nil, decodeError(id, err)
		}
	}
	logger.Debug().Int("tables", len(h.Tables)).Bool("data", opts.LoadData).
		Msgf("loaded database in %s", time.Since(s))
	return db, nil
}

// FindBody returns the path and format of the body Load reads for a table.
func FindBody(dir, tableID string) (string, Format, bool) {
	for _, f := range loadOrder {
		path := filepath.Join(dir, BodyFile(tableID, f))
		if _, err := os.Stat(path); err == nil {
			return path, f, true
		}
	}
	return "", "", false
}

// removeStaleBodies removes every body file that Save did not just write.
func removeStaleBodies(dir string, db *database.Database, written Format) error {
	files, err := DatabaseFiles(dir)
	if err != nil {
		return err
	}
	for _, name := range files {
		id, format, ok := ParseBodyFile(name)
		if !ok {
			continue
		}
		if _, exists := db.Table(id); exists && format == written {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// DatabaseFiles lists the sorted names of the header and body files in dir.
func DatabaseFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == HeaderFile {
			files = append(files, e.Name())
			continue
		}
		if _, _, ok := ParseBodyFile(e.Name()); ok {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ParseBodyFile splits db.<table>.<ext> into table id and format.
func ParseBodyFile(name string) (string, Format, bool) {
	if !strings.HasPrefix(name, "db.") {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, "db.")
	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 {
		return "", "", false
	}
	switch f := Format(rest[dot+1:]); f {
	case FormatCSV, FormatSQLite, FormatParquet:
		return rest[:dot], f, true
	}
	return "", "", false
}

// writeAtomic lets write create a temporary file next to path and renames it
// into place once write succeeded.
func writeAtomic(path string, write func(tmp string) error) error {
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()))
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
