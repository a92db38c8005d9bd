// Package app wires configuration, storage and the codec into the operations
// of the annotab command.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/annotab/annotab/internal/codec"
	"github.com/annotab/annotab/internal/config"
	"github.com/annotab/annotab/internal/database"
	"github.com/annotab/annotab/internal/storage"
	"github.com/rs/zerolog"
)

// App holds the resources shared by the commands.
type App struct {
	cfg *config.Config

	mu      sync.Mutex
	storage storage.ObjectStorage
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{cfg: cfg}, nil
}

// NewWithStorage creates an App using store instead of the configured
// storage.
func NewWithStorage(cfg *config.Config, store storage.ObjectStorage) (*App, error) {
	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	a.storage = store
	return a, nil
}

// Storage returns the configured object storage, connecting on first use.
func (a *App) Storage(ctx context.Context) (storage.ObjectStorage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storage != nil {
		return a.storage, nil
	}

	var (
		store storage.ObjectStorage
		err   error
	)
	switch a.cfg.Storage.Type {
	case config.StorageLocal:
		store, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		s3Cfg.UsePathStyle = a.cfg.Storage.S3.UsePathStyle
		store, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("type", a.cfg.Storage.Type).Msg("storage initialized")
	a.storage = store
	return store, nil
}

// TableSummary describes one table of a database.
type TableSummary struct {
	ID      string
	Kind    string
	Levels  []string
	Columns []string
	Rows    int
	Format  codec.Format
}

// Summary describes a persisted database.
type Summary struct {
	Name        string
	Usage       string
	Languages   []string
	Description string
	Schemes     []string
	Raters      []string
	Media       []string
	Splits      []string
	Tables      []TableSummary
}

// Inspect summarizes the database in dir. Row counts require reading the
// table bodies and are only filled in with data set.
func (a *App) Inspect(ctx context.Context, dir string, data bool) (*Summary, error) {
	db, err := codec.Load(ctx, dir, codec.LoadOptions{LoadData: data})
	if err != nil {
		return nil, err
	}
	s := &Summary{
		Name:        db.Name,
		Usage:       db.Usage,
		Languages:   db.Languages,
		Description: db.Description,
		Schemes:     db.SchemeIDs(),
		Raters:      db.RaterIDs(),
		Media:       db.MediaIDs(),
		Splits:      db.SplitIDs(),
	}
	for _, id := range db.TableIDs() {
		t, _ := db.Table(id)
		ts := TableSummary{
			ID:      id,
			Kind:    string(t.Kind()),
			Columns: t.Columns(),
		}
		if _, f, ok := codec.FindBody(dir, id); ok {
			ts.Format = f
		}
		for _, l := range t.Levels() {
			ts.Levels = append(ts.Levels, l.Name)
		}
		if data {
			ts.Rows = t.Len()
		}
		s.Tables = append(s.Tables, ts)
	}
	return s, nil
}

// Print writes the summary in a human readable form.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "name:        %s\n", s.Name)
	fmt.Fprintf(w, "usage:       %s\n", s.Usage)
	fmt.Fprintf(w, "languages:   %v\n", s.Languages)
	if s.Description != "" {
		fmt.Fprintf(w, "description: %s\n", s.Description)
	}
	fmt.Fprintf(w, "schemes:     %v\n", s.Schemes)
	fmt.Fprintf(w, "raters:      %v\n", s.Raters)
	fmt.Fprintf(w, "media:       %v\n", s.Media)
	fmt.Fprintf(w, "splits:      %v\n", s.Splits)
	fmt.Fprintf(w, "tables:\n")
	for _, t := range s.Tables {
		fmt.Fprintf(w, "  %s (%s, %s): levels %v, columns %v, rows %d\n",
			t.ID, t.Kind, t.Format, t.Levels, t.Columns, t.Rows)
	}
}

// Convert loads the database in src and saves it to dst in format, the
// configured format when empty. src and dst may be the same directory.
func (a *App) Convert(ctx context.Context, src, dst string, format string) (*database.Database, error) {
	if format == "" {
		format = a.cfg.Format
	}
	f, err := codec.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	db, err := codec.Load(ctx, src, codec.LoadOptions{LoadData: true})
	if err != nil {
		return nil, err
	}
	if err := codec.Save(ctx, db, dst, codec.Options{Format: f}); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("src", src).Str("dst", dst).Str("format", format).Msg("converted database")
	return db, nil
}

// Publish uploads the database in dir to prefix of the configured storage.
func (a *App) Publish(ctx context.Context, dir, prefix string) error {
	store, err := a.Storage(ctx)
	if err != nil {
		return err
	}
	if err := codec.Publish(ctx, store, dir, prefix, a.transferOptions()); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("dir", dir).Str("prefix", prefix).Msg("published database")
	return nil
}

// Fetch downloads the database under prefix of the configured storage into
// dir.
func (a *App) Fetch(ctx context.Context, prefix, dir string) error {
	store, err := a.Storage(ctx)
	if err != nil {
		return err
	}
	if err := codec.Fetch(ctx, store, prefix, dir, a.transferOptions()); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("dir", dir).Str("prefix", prefix).Msg("fetched database")
	return nil
}

func (a *App) transferOptions() codec.TransferOptions {
	return codec.TransferOptions{Concurrency: a.cfg.Concurrency}
}
