// Package config loads and validates ingestion configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/job-listing-ingest/internal/enrich"
	"github.com/JakeFAU/job-listing-ingest/internal/ingest"
	"github.com/JakeFAU/job-listing-ingest/internal/source"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Archive drivers.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
	List      ListConfig      `mapstructure:"list"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Lock      LockConfig      `mapstructure:"lock"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures outbound source requests.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// SourcesConfig points the list phase at its upstream sites.
type SourcesConfig struct {
	PrimaryURL         string   `mapstructure:"primary_url"`
	PrimaryOperationID string   `mapstructure:"primary_operation_id"`
	SecondaryURL       string   `mapstructure:"secondary_url"`
	Keywords           []string `mapstructure:"keywords"`
	MaxItems           int      `mapstructure:"max_items"`
}

// SyntheticConfig toggles the built-in catalog and template descriptions.
type SyntheticConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ListConfig holds list-phase defaults.
type ListConfig struct {
	SearchTerms []string `mapstructure:"search_terms"`
}

// EnrichConfig tunes the detail phase.
type EnrichConfig struct {
	BatchLimit         int           `mapstructure:"batch_limit"`
	Delay              time.Duration `mapstructure:"delay"`
	SelectorTimeout    time.Duration `mapstructure:"selector_timeout"`
	MinTextLength      int           `mapstructure:"min_text_length"`
	MaxBodyLength      int           `mapstructure:"max_body_length"`
	PlaceholderPattern string        `mapstructure:"placeholder_pattern"`
	Selectors          []string      `mapstructure:"selectors"`
}

// HeadlessConfig configures the browser used by the detail phase.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	NoSandbox     bool   `mapstructure:"no_sandbox"`
	ExecPath      string `mapstructure:"exec_path"`
}

// StoreConfig selects and configures the persistence gateway.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ArchiveConfig selects where raw source payloads are kept.
type ArchiveConfig struct {
	Driver      string `mapstructure:"driver"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	GCSEndpoint string `mapstructure:"gcs_endpoint"`
	Prefix      string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DefaultLockPath sits next to the default SQLite file.
const DefaultLockPath = "jobingest.lock"

// LockConfig names the file used to serialize runs. An empty path disables
// the cross-process lock.
type LockConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBINGEST")
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
	enrichDefaults := enrich.DefaultConfig()

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("http.rate_per_second", 1.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("sources.primary_url", source.DefaultWellfoundURL)
	v.SetDefault("sources.primary_operation_id", source.DefaultWellfoundOperationID)
	v.SetDefault("sources.secondary_url", source.DefaultWeWorkRemotelyURL)
	v.SetDefault("sources.keywords", source.DefaultKeywords)
	v.SetDefault("sources.max_items", 10)
	v.SetDefault("synthetic.enabled", true)
	v.SetDefault("list.search_terms", ingest.DefaultSearchTerms)
	v.SetDefault("enrich.batch_limit", enrichDefaults.BatchLimit)
	v.SetDefault("enrich.delay", enrichDefaults.Delay)
	v.SetDefault("enrich.selector_timeout", enrichDefaults.SelectorTimeout)
	v.SetDefault("enrich.min_text_length", enrichDefaults.MinTextLength)
	v.SetDefault("enrich.max_body_length", enrichDefaults.MaxBodyLength)
	v.SetDefault("enrich.placeholder_pattern", enrichDefaults.PlaceholderPattern)
	v.SetDefault("enrich.selectors", enrichDefaults.Selectors)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.no_sandbox", false)
	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.dsn", "jobingest.db")
	v.SetDefault("store.table", "job_listings")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("archive.driver", ArchiveNone)
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("server.port", 8080)
	v.SetDefault("lock.path", DefaultLockPath)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	if c.Sources.MaxItems <= 0 {
		return fmt.Errorf("sources.max_items must be > 0")
	}
	if c.Enrich.BatchLimit <= 0 {
		return fmt.Errorf("enrich.batch_limit must be > 0")
	}
	if c.Enrich.Delay < 0 {
		return fmt.Errorf("enrich.delay must be >= 0")
	}
	if c.Enrich.SelectorTimeout <= 0 {
		return fmt.Errorf("enrich.selector_timeout must be > 0")
	}
	if c.Enrich.MaxBodyLength <= 0 {
		return fmt.Errorf("enrich.max_body_length must be > 0")
	}
	if c.Headless.Enabled && c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	switch c.Store.Driver {
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for driver %q", c.Store.Driver)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.driver must be one of postgres, sqlite, memory; got %q", c.Store.Driver)
	}
	switch c.Archive.Driver {
	case "", ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local archive")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs archive")
		}
	default:
		return fmt.Errorf("archive.driver must be one of none, memory, local, gcs; got %q", c.Archive.Driver)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// HTTPTimeout returns the outbound request budget.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout returns the per-navigation budget of the headless browser.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// EnrichSettings converts the detail-phase section into pipeline settings.
func (c Config) EnrichSettings() enrich.Config {
	return enrich.Config{
		BatchLimit:         c.Enrich.BatchLimit,
		Delay:              c.Enrich.Delay,
		SelectorTimeout:    c.Enrich.SelectorTimeout,
		MinTextLength:      c.Enrich.MinTextLength,
		MaxBodyLength:      c.Enrich.MaxBodyLength,
		Selectors:          c.Enrich.Selectors,
		PlaceholderPattern: c.Enrich.PlaceholderPattern,
		Synthetic:          c.Synthetic.Enabled,
	}
}
