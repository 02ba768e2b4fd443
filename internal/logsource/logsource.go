// Package logsource opens access log inputs, local or on S3, plain or
// compressed.
package logsource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sdko-org/flathub-stats/internal/config"
	"github.com/sdko-org/flathub-stats/internal/storage"
)

// Open returns a reader over the decompressed contents of path. The
// compression is chosen by file extension.
func Open(ctx context.Context, cfg *config.Config, path string) (io.ReadCloser, error) {
	store, key, err := storage.ForPath(cfg, path)
	if err != nil {
		return nil, err
	}
	raw, err := store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return Decompress(path, raw)
}

// Decompress wraps raw according to the extension of name. The returned
// reader closes raw.
func Decompress(name string, raw io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(raw)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(raw)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{closerFunc(zr.Close), raw}}, nil
	default:
		return raw, nil
	}
}

type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (r *stackedReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
