package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	mu       sync.Mutex
	uploads  []string
	failWith string
}

func (s *flakyStore) Upload(key string, data io.Reader) (UploadResult, error) {
	if s.failWith != "" && strings.Contains(key, s.failWith) {
		return UploadResult{}, errors.New("disk full")
	}

	content, err := io.ReadAll(data)
	if err != nil {
		return UploadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, key)
	return UploadResult{Key: key, Url: "http://files/" + key, Size: int64(len(content))}, nil
}

func (s *flakyStore) Delete(key string) error           { return nil }
func (s *flakyStore) Exists(key string) (bool, error)   { return false, nil }
func (s *flakyStore) Usage() (UsageStats, error)        { return UsageStats{}, nil }
func (s *flakyStore) Location() string                  { return "test" }

func TestBatchUpload(t *testing.T) {
	store := &flakyStore{}

	files := make([]PendingFile, 0, 7)
	for i := 0; i < 7; i++ {
		files = append(files, PendingFile{
			Name: fmt.Sprintf("file-%d.png", i),
			Data: bytes.NewReader([]byte("content")),
		})
	}

	results := BatchUpload(context.Background(), store, "projects/p1/banners", files)

	require.Len(t, results, 7)
	for _, result := range results {
		assert.True(t, strings.HasPrefix(result.Key, "projects/p1/banners/"))
		assert.NotEmpty(t, result.Url)
		assert.Equal(t, int64(len("content")), result.Size)
	}
	assert.Len(t, store.uploads, 7)
}

func TestBatchUploadDropsFailures(t *testing.T) {
	store := &flakyStore{failWith: "bad.png"}

	files := []PendingFile{
		{Name: "good.png", Data: bytes.NewReader([]byte("ok"))},
		{Name: "bad.png", Data: bytes.NewReader([]byte("boom"))},
		{Name: "fine.png", Data: bytes.NewReader([]byte("ok"))},
	}

	results := BatchUpload(context.Background(), store, "uploads", files)

	require.Len(t, results, 2)
	for _, result := range results {
		assert.NotContains(t, result.Key, "bad.png")
	}
}

func TestBatchUploadEmpty(t *testing.T) {
	results := BatchUpload(context.Background(), &flakyStore{}, "uploads", nil)
	assert.Empty(t, results)
}
