package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "wordle.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, 256, cfg.Search.CacheSize)
	assert.Equal(t, 10*time.Minute, cfg.Search.CacheTTL)
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 200, cfg.Import.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Import.FlushInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Telegram.Token)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wordle.yaml")
	content := `
telegram:
  token: file-token
  poll_timeout: 30s
database:
  path: /tmp/words.db
search:
  cache_size: 0
import:
  workers: 8
log:
  level: debug
  development: true
metrics:
  listen: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("WORDLE_TELEGRAM_TOKEN", "env-token")
	t.Setenv("WORDLE_IMPORT_BATCH_SIZE", "50")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, 30*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, "/tmp/words.db", cfg.Database.Path)
	assert.Equal(t, 0, cfg.Search.CacheSize)
	assert.Equal(t, 8, cfg.Import.Workers)
	assert.Equal(t, 50, cfg.Import.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoadFindsConfigInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database:\n  path: local.db\n"), 0o644))
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local.db", cfg.Database.Path)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	base, err := Load("")
	require.NoError(t, err)
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"empty db path":     func(c *Config) { c.Database.Path = "" },
		"negative cache":    func(c *Config) { c.Search.CacheSize = -1 },
		"cache without ttl": func(c *Config) { c.Search.CacheTTL = 0 },
		"zero workers":      func(c *Config) { c.Import.Workers = 0 },
		"zero batch":        func(c *Config) { c.Import.BatchSize = 0 },
		"negative progress": func(c *Config) { c.Import.ProgressEvery = -5 },
		"negative poll":     func(c *Config) { c.Telegram.PollTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
