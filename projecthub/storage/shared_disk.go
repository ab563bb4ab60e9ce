package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

type SharedDiskStorage struct {
	basepath string
	baseUrl  string
}

func NewSharedDisk(basepath, baseUrl string) ObjectStore {
	slog.Info("creating new shared disk storage", "basepath", basepath, "base_url", baseUrl)
	return &SharedDiskStorage{basepath: basepath, baseUrl: strings.TrimSuffix(baseUrl, "/")}
}

func (s *SharedDiskStorage) fullpath(key string) string {
	return filepath.Join(s.basepath, key)
}

func (s *SharedDiskStorage) url(key string) string {
	return fmt.Sprintf("%v/%v", s.baseUrl, key)
}

func (s *SharedDiskStorage) Upload(key string, data io.Reader) (UploadResult, error) {
	fullpath := s.fullpath(key)

	err := os.MkdirAll(filepath.Dir(fullpath), 0777)
	if err != nil {
		slog.Error("error creating parent directory", "path", fullpath, "error", err)
		return UploadResult{}, fmt.Errorf("error creating parent directory %v: %v", key, err)
	}

	file, err := os.OpenFile(fullpath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		slog.Error("error opening file for writing", "path", fullpath, "error", err)
		return UploadResult{}, fmt.Errorf("error opening file %v: %v", key, err)
	}
	defer file.Close()

	size, err := io.Copy(file, data)
	if err != nil {
		slog.Error("error writing to file", "path", fullpath, "error", err)
		return UploadResult{}, fmt.Errorf("error writing to file %v: %v", key, err)
	}

	return UploadResult{Key: key, Url: s.url(key), Size: size}, nil
}

func (s *SharedDiskStorage) Delete(key string) error {
	fullpath := s.fullpath(key)
	err := os.RemoveAll(fullpath)
	if err != nil {
		slog.Error("error deleting file", "path", fullpath, "error", err)
		return fmt.Errorf("error deleting file %v: %v", key, err)
	}
	return nil
}

func (s *SharedDiskStorage) Exists(key string) (bool, error) {
	fullpath := s.fullpath(key)
	_, err := os.Stat(fullpath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	slog.Error("error checking if file exists", "path", fullpath, "error", err)
	return false, fmt.Errorf("error checking if file %v exists: %w", fullpath, err)
}

func (s *SharedDiskStorage) Usage() (UsageStats, error) {
	var stat unix.Statfs_t

	err := unix.Statfs(s.basepath, &stat)
	if err != nil {
		slog.Error("error getting disk usage for shared storage", "path", s.basepath, "error", err)
		return UsageStats{}, fmt.Errorf("error getting disk usage stats: %w", err)
	}

	return UsageStats{
		TotalBytes: stat.Blocks * uint64(stat.Bsize),
		FreeBytes:  stat.Bfree * uint64(stat.Bsize),
	}, nil
}

func (s *SharedDiskStorage) Location() string {
	return s.basepath
}
