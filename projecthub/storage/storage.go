package storage

import "io"

type UploadResult struct {
	Key  string
	Url  string
	Size int64
}

type UsageStats struct {
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// ObjectStore persists uploaded files and hands back a url clients can fetch
// them from. Implementations must be safe for concurrent use.
type ObjectStore interface {
	Upload(key string, data io.Reader) (UploadResult, error)

	Delete(key string) error

	Exists(key string) (bool, error)

	Usage() (UsageStats, error)

	Location() string
}
