package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Batch transfers sets of files between a local directory and a prefix of an
// object storage, running at most concurrency transfers at a time.
type Batch struct {
	storage     ObjectStorage
	concurrency int
}

// BatchResult contains the outcome of a batch transfer, keyed by file name.
type BatchResult struct {
	Transferred []string
	Errors      map[string]error
}

// Err returns the error of the first failed file in name order, nil when
// every transfer succeeded.
func (r *BatchResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Errors))
	for name := range r.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("%d of %d transfers failed, %s: %w",
		len(r.Errors), len(r.Errors)+len(r.Transferred), names[0], r.Errors[names[0]])
}

// NewBatch creates a batch transferring through storage. A concurrency
// below one means one transfer at a time.
func NewBatch(storage ObjectStorage, concurrency int) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batch{storage: storage, concurrency: concurrency}
}

// Upload uploads dir/<name> to prefix/<name> for every name.
func (b *Batch) Upload(ctx context.Context, dir string, names []string, prefix string) *BatchResult {
	return b.run(ctx, names, func(name string) error {
		_, err := b.storage.UploadMultipart(ctx, filepath.Join(dir, name), path.Join(prefix, name))
		return err
	})
}

// Download downloads prefix/<name> to dir/<name> for every name.
func (b *Batch) Download(ctx context.Context, prefix string, names []string, dir string) *BatchResult {
	return b.run(ctx, names, func(name string) error {
		return b.storage.Download(ctx, path.Join(prefix, name), filepath.Join(dir, name))
	})
}

func (b *Batch) run(ctx context.Context, names []string, transfer func(name string) error) *BatchResult {
	result := &BatchResult{Errors: make(map[string]error)}
	sem := semaphore.NewWeighted(int64(b.concurrency))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, name := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled
			mu.Lock()
			result.Errors[name] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(name string) {
			defer sem.Release(1)
			defer wg.Done()

			err := transfer(name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[name] = err
				return
			}
			result.Transferred = append(result.Transferred, name)
		}(name)
	}
	wg.Wait()

	sort.Strings(result.Transferred)
	return result
}
