package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sdko-org/flathub-stats/internal/config"
)

var ErrNotFound = errors.New("object not found")

// Storage is a flat key/value blob store. Keys are file paths for the local
// backend and object keys for S3.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ForPath picks the backend for a user-supplied location. "s3://bucket/key"
// selects S3; anything else is a local path.
func ForPath(cfg *config.Config, path string) (Storage, string, error) {
	if rest, ok := strings.CutPrefix(path, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return nil, "", errors.New("s3 location must be s3://bucket/key: " + path)
		}
		s3Storage, err := NewS3Storage(cfg, bucket)
		if err != nil {
			return nil, "", err
		}
		return s3Storage, key, nil
	}
	return NewLocalStorage(), path, nil
}
