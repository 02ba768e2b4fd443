package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REPO_URL", "")
	t.Setenv("FETCH_RATE", "")
	t.Setenv("POSTGRES_ENABLED", "")

	cfg := Load()
	assert.Equal(t, "https://dl.flathub.org/repo", cfg.RepoURL)
	assert.Equal(t, "commit-cache.json", cfg.CachePath)
	assert.Equal(t, float64(20), cfg.FetchRate)
	assert.Equal(t, time.Duration(0), cfg.FetchTimeout)
	assert.False(t, cfg.PostgresEnabled)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REPO_URL", "http://mirror.example/repo")
	t.Setenv("FETCH_RATE", "2.5")
	t.Setenv("FETCH_TIMEOUT", "10s")
	t.Setenv("POSTGRES_ENABLED", "true")
	t.Setenv("RATE_LIMIT", "not-a-number")

	cfg := Load()
	assert.Equal(t, "http://mirror.example/repo", cfg.RepoURL)
	assert.Equal(t, 2.5, cfg.FetchRate)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.PostgresEnabled)
	assert.Equal(t, 100, cfg.RateLimit)
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repo_url: https://other.example/repo\nfetch_timeout: 30s\nstats_dir: s3://bucket/stats\n"), 0644))

	cfg := Load()
	cachePath := cfg.CachePath
	require.NoError(t, LoadFile(cfg, path))

	assert.Equal(t, "https://other.example/repo", cfg.RepoURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "s3://bucket/stats", cfg.StatsDir)
	assert.Equal(t, cachePath, cfg.CachePath)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	err := LoadFile(Load(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("repo_url: ftp://nope\n"), 0644))
	err = LoadFile(Load(), bad)
	assert.ErrorContains(t, err, "http(s)")
}
