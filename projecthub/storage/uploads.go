package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type PendingFile struct {
	Name string
	Data io.Reader
}

// uploadConcurrency bounds how many files a single batch writes at once.
const uploadConcurrency = 3

// BatchUpload stores a set of files under the given key prefix with bounded
// concurrency. Individual upload failures are logged and dropped from the
// results rather than failing the batch.
func BatchUpload(ctx context.Context, store ObjectStore, prefix string, files []PendingFile) []UploadResult {
	sem := semaphore.NewWeighted(uploadConcurrency)
	group, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make([]UploadResult, 0, len(files))

	for _, file := range files {
		file := file
		group.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			key := filepath.Join(prefix, fmt.Sprintf("%v-%v", uuid.New().String()[:8], file.Name))
			result, err := store.Upload(key, file.Data)
			if err != nil {
				slog.Error("batch upload failed for file", "name", file.Name, "error", err)
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	// Per-file errors are handled above, so the group never returns one.
	_ = group.Wait()

	return results
}
