package codec

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransferOptions control Publish and Fetch.
type TransferOptions struct {
	// Concurrency is the number of parallel transfers, one when zero.
	Concurrency int
}

// Publish uploads the database persisted in dir to prefix. Bodies go first
// and the header last, so a reader that finds the header finds every body.
// Database files under prefix that dir does not have are removed afterwards.
func Publish(ctx context.Context, store storage.ObjectStorage, dir, prefix string, opts TransferOptions) error {
	logger := zerolog.Ctx(ctx).With().Str("dir", dir).Str("prefix", prefix).Logger()
	s := time.Now()

	files, err := DatabaseFiles(dir)
	if err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to list database files", err)
	}
	var bodies []string
	hasHeader := false
	for _, name := range files {
		if name == HeaderFile {
			hasHeader = true
			continue
		}
		bodies = append(bodies, name)
	}
	if !hasHeader {
		return errors.NewStorageError(errors.CodeObjectNotFound, fmt.Sprintf("no %s in %s", HeaderFile, dir), nil)
	}

	batch := storage.NewBatch(store, opts.Concurrency)
	if err := batch.Upload(ctx, dir, bodies, prefix).Err(); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to upload table bodies", err)
	}
	if err := batch.Upload(ctx, dir, []string{HeaderFile}, prefix).Err(); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to upload header", err)
	}

	remote, err := remoteFiles(ctx, store, prefix)
	if err != nil {
		return err
	}
	local := make(map[string]struct{}, len(files))
	for _, name := range files {
		local[name] = struct{}{}
	}
	for _, name := range remote {
		if _, ok := local[name]; ok {
			continue
		}
		if err := store.Delete(ctx, path.Join(prefix, name)); err != nil {
			return errors.NewStorageError(errors.CodeUploadFailed, fmt.Sprintf("failed to remove stale %s", name), err)
		}
		logger.Debug().Str("file", name).Msg("removed stale object")
	}

	logger.Debug().Int("files", len(files)).Msgf("published database in %s", time.Since(s))
	return nil
}

// Fetch downloads the database published under prefix into dir. The files are
// downloaded into a scratch directory inside dir first and moved into place
// once all of them arrived; database files of dir that prefix does not have
// are removed.
func Fetch(ctx context.Context, store storage.ObjectStorage, prefix, dir string, opts TransferOptions) error {
	logger := zerolog.Ctx(ctx).With().Str("dir", dir).Str("prefix", prefix).Logger()
	s := time.Now()

	remote, err := remoteFiles(ctx, store, prefix)
	if err != nil {
		return err
	}
	hasHeader := false
	for _, name := range remote {
		if name == HeaderFile {
			hasHeader = true
		}
	}
	if !hasHeader {
		return errors.NewStorageError(errors.CodeObjectNotFound, fmt.Sprintf("no %s under %s", HeaderFile, prefix), nil)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to create database directory", err)
	}
	scratch := filepath.Join(dir, ".fetch-"+uuid.New().String())
	defer os.RemoveAll(scratch)

	batch := storage.NewBatch(store, opts.Concurrency)
	if err := batch.Download(ctx, prefix, remote, scratch).Err(); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to download database", err)
	}

	existing, err := DatabaseFiles(dir)
	if err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to list database files", err)
	}
	fetched := make(map[string]struct{}, len(remote))
	for _, name := range remote {
		fetched[name] = struct{}{}
	}
	for _, name := range existing {
		if _, ok := fetched[name]; !ok {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return errors.NewStorageError(errors.CodeDownloadFailed, fmt.Sprintf("failed to remove stale %s", name), err)
			}
		}
	}
	// header last, see Publish
	for _, name := range append(bodiesOf(remote), HeaderFile) {
		if err := os.Rename(filepath.Join(scratch, name), filepath.Join(dir, name)); err != nil {
			return errors.NewStorageError(errors.CodeDownloadFailed, fmt.Sprintf("failed to move %s into place", name), err)
		}
	}

	logger.Debug().Int("files", len(remote)).Msgf("fetched database in %s", time.Since(s))
	return nil
}

// remoteFiles lists the names of the database files directly under prefix.
func remoteFiles(ctx context.Context, store storage.ObjectStorage, prefix string) ([]string, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeDownloadFailed, "failed to list objects", err)
	}
	var names []string
	for _, obj := range objects {
		if path.Dir(obj) != path.Clean(prefix) {
			continue
		}
		name := path.Base(obj)
		if name == HeaderFile {
			names = append(names, name)
			continue
		}
		if _, _, ok := ParseBodyFile(name); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func bodiesOf(names []string) []string {
	var bodies []string
	for _, name := range names {
		if name != HeaderFile {
			bodies = append(bodies, name)
		}
	}
	return bodies
}
