// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Search   SearchConfig   `mapstructure:"search"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs the portal fetch engine. Empty BaseURL and UserAgent
// fall back to the portal defaults built into the fetch client.
type FetchConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	UserAgent        string `mapstructure:"user_agent"`
	ProxyURL         string `mapstructure:"proxy_url"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	MinIntervalMs    int    `mapstructure:"min_interval_ms"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// Timeout is the per-request HTTP timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// MinInterval is the floor between consecutive portal requests.
func (f FetchConfig) MinInterval() time.Duration {
	return time.Duration(f.MinIntervalMs) * time.Millisecond
}

// BackoffInitial is the first retry delay.
func (f FetchConfig) BackoffInitial() time.Duration {
	return time.Duration(f.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps retry delays.
func (f FetchConfig) BackoffMax() time.Duration {
	return time.Duration(f.BackoffMaxMs) * time.Millisecond
}

// SearchConfig bounds result aggregation.
type SearchConfig struct {
	Workers  int `mapstructure:"workers"`
	PageSize int `mapstructure:"page_size"`
}

// MonitorConfig governs check scheduling and retries.
type MonitorConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	IntervalHours       int  `mapstructure:"interval_hours"`
	MinDelaySeconds     int  `mapstructure:"min_delay_seconds"`
	OverlapDays         int  `mapstructure:"overlap_days"`
	RetroactiveDays     int  `mapstructure:"retroactive_days"`
	RetryBackoffMinutes int  `mapstructure:"retry_backoff_minutes"`
	MaxRetries          int  `mapstructure:"max_retries"`
}

// Interval is the default time between checks for subscriptions without one.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalHours) * time.Hour
}

// MinDelay floors every scheduled delay.
func (m MonitorConfig) MinDelay() time.Duration {
	return time.Duration(m.MinDelaySeconds) * time.Second
}

// RetryBackoff is the fixed delay between failed-cycle retries.
func (m MonitorConfig) RetryBackoff() time.Duration {
	return time.Duration(m.RetryBackoffMinutes) * time.Minute
}

// StorageConfig selects the page snapshot backend. An empty backend disables
// snapshot archiving.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Local   LocalStorageConfig `mapstructure:"local"`
	GCS     GCSStorageConfig   `mapstructure:"gcs"`
}

// LocalStorageConfig points snapshots at a filesystem directory.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSStorageConfig points snapshots at a GCS bucket.
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// DatabaseConfig controls access to the relational database. An empty DSN
// selects the in-memory store.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// NotifierConfig selects the notification channel.
type NotifierConfig struct {
	Backend string               `mapstructure:"backend"`
	PubSub  PubSubNotifierConfig `mapstructure:"pubsub"`
}

// PubSubNotifierConfig holds Cloud Pub/Sub publish coordinates.
type PubSubNotifierConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PJE")
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
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.min_interval_ms", 1000)
	v.SetDefault("fetch.backoff_initial_ms", 1000)
	v.SetDefault("fetch.backoff_max_ms", 10000)
	v.SetDefault("search.workers", 4)
	v.SetDefault("search.page_size", 50)
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval_hours", 24)
	v.SetDefault("monitor.min_delay_seconds", 60)
	v.SetDefault("monitor.overlap_days", 1)
	v.SetDefault("monitor.retroactive_days", 7)
	v.SetDefault("monitor.retry_backoff_minutes", 30)
	v.SetDefault("monitor.max_retries", 3)
	v.SetDefault("notifier.backend", "log")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Search.Workers <= 0 {
		return fmt.Errorf("search.workers must be > 0")
	}
	if c.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be > 0")
	}
	if c.Monitor.Enabled && c.Monitor.IntervalHours <= 0 {
		return fmt.Errorf("monitor.interval_hours must be > 0 when the monitor is enabled")
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend: %s", c.Storage.Backend)
	}
	switch c.Notifier.Backend {
	case "", "log", "memory":
	case "pubsub":
		if c.Notifier.PubSub.ProjectID == "" || c.Notifier.PubSub.Topic == "" {
			return fmt.Errorf("notifier.pubsub.project_id and notifier.pubsub.topic must be set for the pubsub backend")
		}
	default:
		return fmt.Errorf("unknown notifier.backend: %s", c.Notifier.Backend)
	}
	return nil
}
