package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "en", cfg.Crawl.Language)
	require.Equal(t, 3, cfg.Crawl.Concurrency)
	require.Equal(t, 3, cfg.Crawl.MaxRetries)
	require.Equal(t, 10, cfg.Crawl.DiscrepancyTolerance)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	require.Equal(t, time.Second, cfg.PacingBase())
	require.Equal(t, 60*time.Second, cfg.BackoffCap())
	require.Equal(t, "jsonfile", cfg.Storage.Provider)
	require.Equal(t, "none", cfg.Archive.Provider)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  queue_depth: 4
auth:
  enabled: true
  api_key: secret
crawl:
  language: pt
  concurrency: 5
  max_retries: 2
  max_pages: 40
  default_count: 30
http:
  timeout_seconds: 45
  requests_per_second: 0.5
storage:
  provider: memory
archive:
  provider: local
  local_dir: /tmp/pages
export:
  enabled: true
  dir: out
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, "pt", cfg.Crawl.Language)
	require.Equal(t, 5, cfg.Crawl.Concurrency)
	require.Equal(t, 40, cfg.Crawl.MaxPages)
	require.Equal(t, 45*time.Second, cfg.HTTPTimeout())
	require.Equal(t, "memory", cfg.Storage.Provider)
	require.Equal(t, "local", cfg.Archive.Provider)
	require.True(t, cfg.Export.Enabled)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Crawl: CrawlConfig{
			Language:    "en",
			Concurrency: 1,
		},
		HTTP:    HTTPConfig{TimeoutSeconds: 10, RequestsPerSecond: 1},
		Storage: StorageConfig{Provider: "memory"},
		Archive: ArchiveConfig{Provider: "none"},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "invalid port",
			mutate: func(c *Config) { c.Server.Port = 0 },
			want:   "server.port",
		},
		{
			name:   "missing language",
			mutate: func(c *Config) { c.Crawl.Language = "" },
			want:   "crawl.language",
		},
		{
			name:   "invalid concurrency",
			mutate: func(c *Config) { c.Crawl.Concurrency = 0 },
			want:   "crawl.concurrency",
		},
		{
			name:   "invalid timeout",
			mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 },
			want:   "http.timeout_seconds",
		},
		{
			name:   "invalid rate",
			mutate: func(c *Config) { c.HTTP.RequestsPerSecond = 0 },
			want:   "http.requests_per_second",
		},
		{
			name:   "unknown storage provider",
			mutate: func(c *Config) { c.Storage.Provider = "sqlite" },
			want:   "storage.provider",
		},
		{
			name:   "postgres without dsn",
			mutate: func(c *Config) { c.Storage.Provider = "postgres" },
			want:   "storage.dsn",
		},
		{
			name:   "gcs without bucket",
			mutate: func(c *Config) { c.Archive.Provider = "gcs" },
			want:   "archive.gcs_bucket",
		},
		{
			name:   "auth missing api key",
			mutate: func(c *Config) { c.Auth.Enabled = true },
			want:   "auth.api_key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
