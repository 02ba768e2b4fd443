package logsource

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sdko-org/flathub-stats/internal/config"
	"github.com/sdko-org/flathub-stats/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const content = "line one\nline two\n"

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func readAll(t *testing.T, path string) string {
	t.Helper()
	r, err := Open(context.Background(), config.Load(), path)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestOpen_Plain(t *testing.T) {
	path := writeFile(t, "fastly.log", []byte(content))
	assert.Equal(t, content, readAll(t, path))
}

func TestOpen_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := writeFile(t, "fastly.log.gz", buf.Bytes())
	assert.Equal(t, content, readAll(t, path))
}

func TestOpen_Zstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	data := enc.EncodeAll([]byte(content), nil)
	require.NoError(t, enc.Close())

	path := writeFile(t, "fastly.log.zst", data)
	assert.Equal(t, content, readAll(t, path))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), config.Load(), filepath.Join(t.TempDir(), "missing.log"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	path := writeFile(t, "broken.log.gz", []byte("not gzip"))
	_, err = Open(context.Background(), config.Load(), path)
	assert.Error(t, err)
}
