// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs, loadable from an optional file
// and REVIEWCRAWLER_* environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Pacing   PacingConfig   `mapstructure:"pacing"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Export   ExportConfig   `mapstructure:"export"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// QueueDepth bounds how many pending runs the submit endpoint accepts.
	QueueDepth int `mapstructure:"queue_depth"`
}

// AuthConfig toggles API-key authentication on the run endpoints.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlConfig governs the pagination engine and coordinator.
type CrawlConfig struct {
	// Language is the target review language code.
	Language string `mapstructure:"language"`
	// Concurrency is the admission-gate width: how many items crawl at once.
	Concurrency int `mapstructure:"concurrency"`
	// MaxRetries bounds backoff rounds per page before the item is abandoned.
	MaxRetries int `mapstructure:"max_retries"`
	// MaxPages optionally caps pages per item; zero means no cap.
	MaxPages int `mapstructure:"max_pages"`
	// DefaultCount seeds the metrics resolver when the site reports nothing.
	DefaultCount int `mapstructure:"default_count"`
	// DiscrepancyTolerance is the absolute gap between pagination and
	// selector counts past which a warning is logged.
	DiscrepancyTolerance int `mapstructure:"discrepancy_tolerance"`
	// MetricsCacheSize bounds the resolver's memoisation cache.
	MetricsCacheSize int `mapstructure:"metrics_cache_size"`
}

// HTTPConfig shapes the outbound page fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`
	// RequestsPerSecond is the shared cap across all concurrent engines.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// PacingConfig tunes the happy-path delay schedule.
type PacingConfig struct {
	BaseMs         int `mapstructure:"base_ms"`
	BackoffCapSec  int `mapstructure:"backoff_cap_seconds"`
	MilestoneEvery int `mapstructure:"milestone_every"`
}

// StorageConfig selects and configures the result store.
type StorageConfig struct {
	// Provider is "jsonfile", "postgres", or "memory".
	Provider string `mapstructure:"provider"`
	// Path is the consolidated JSON document location for jsonfile.
	Path string `mapstructure:"path"`
	// DSN is the Postgres connection string for postgres.
	DSN string `mapstructure:"dsn"`
	// Table is the Postgres results table name.
	Table string `mapstructure:"table"`
}

// ArchiveConfig selects where zero-record page bodies are kept.
type ArchiveConfig struct {
	// Provider is "none", "memory", "local", or "gcs".
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ExportConfig controls the flat-file exporters.
type ExportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// PubSubConfig names the run-completion topic; empty project disables it.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AnalyzerConfig toggles post-crawl sentiment annotation.
type AnalyzerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig selects zap mode and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from the optional file path and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REVIEWCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.queue_depth", 16)
	v.SetDefault("crawl.language", "en")
	v.SetDefault("crawl.concurrency", 3)
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("crawl.max_pages", 0)
	v.SetDefault("crawl.default_count", 0)
	v.SetDefault("crawl.discrepancy_tolerance", 10)
	v.SetDefault("crawl.metrics_cache_size", 256)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("http.accept_language", "en-US,en;q=0.9")
	v.SetDefault("http.requests_per_second", 1.0)
	v.SetDefault("pacing.base_ms", 1000)
	v.SetDefault("pacing.backoff_cap_seconds", 60)
	v.SetDefault("pacing.milestone_every", 50)
	v.SetDefault("storage.provider", "jsonfile")
	v.SetDefault("storage.path", "data/reviews.json")
	v.SetDefault("storage.table", "crawl_results")
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("export.enabled", false)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("analyzer.enabled", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.Language == "" {
		return fmt.Errorf("crawl.language must be set")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.MaxRetries < 0 {
		return fmt.Errorf("crawl.max_retries must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond <= 0 {
		return fmt.Errorf("http.requests_per_second must be > 0")
	}
	switch c.Storage.Provider {
	case "jsonfile", "postgres", "memory":
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	if c.Storage.Provider == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn must be set for the postgres provider")
	}
	switch c.Archive.Provider {
	case "none", "memory", "local", "gcs":
	default:
		return fmt.Errorf("archive.provider %q is not supported", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// HTTPTimeout returns the fetcher timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PacingBase returns the happy-path base delay as a duration.
func (c Config) PacingBase() time.Duration {
	return time.Duration(c.Pacing.BaseMs) * time.Millisecond
}

// BackoffCap returns the backoff ceiling as a duration.
func (c Config) BackoffCap() time.Duration {
	return time.Duration(c.Pacing.BackoffCapSec) * time.Second
}
