package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the optional settings. The endpoint URLs default to the
// public demo deployments the pipeline was originally pointed at.
const (
	DefaultFeedURL    = "https://charlestng-real-time-fraud-detection.hf.space/current-transactions"
	DefaultScoringURL = "https://cnoret-fraud-detection-api.hf.space/predict"
	DefaultSchemaURL  = "https://cnoret-fraud-detection-api.hf.space/health"

	DefaultStorageDriver    = "sqlite3"
	DefaultStorageDSN       = "fraudpipe.db"
	DefaultScheduleInterval = time.Minute
	DefaultMaxRetries       = 1
	DefaultAlertThreshold   = 0.001
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultMetricsAddr      = ":9091"
)

// Config is the full runtime configuration of the pipeline, loaded from
// the environment. cmd binaries may override individual fields via flags.
type Config struct {
	FeedURL    string // upstream transaction feed (GET)
	SchemaURL  string // model schema discovery endpoint (GET)
	ScoringURL string // model scoring endpoint (POST)

	StorageDriver string // "sqlite3", "postgres" or "bigquery"
	StorageDSN    string // database/sql DSN for the SQL drivers

	// BigQuery backend settings, used only when StorageDriver is "bigquery".
	BigQueryProject string
	BigQueryDataset string

	// ArchiveBucket, when set, enables archiving of raw feed payloads to GCS.
	ArchiveBucket string

	ScheduleInterval time.Duration // tick interval of the scheduler
	MaxRetries       int           // full-run re-invocations after a failed run
	AlertThreshold   float64       // fraud probability above which an alert fires
	HTTPTimeout      time.Duration // per-call timeout for all outbound HTTP

	MetricsAddr string // listen address for /metrics and /healthz
}

// FromEnv builds a Config from environment variables, applying defaults
// for everything unset.
func FromEnv() (*Config, error) {
	cfg := &Config{
		FeedURL:          envOr("FEED_URL", DefaultFeedURL),
		SchemaURL:        envOr("SCHEMA_URL", DefaultSchemaURL),
		ScoringURL:       envOr("SCORING_URL", DefaultScoringURL),
		StorageDriver:    envOr("STORAGE_DRIVER", DefaultStorageDriver),
		StorageDSN:       envOr("STORAGE_DSN", DefaultStorageDSN),
		BigQueryProject:  os.Getenv("BIGQUERY_PROJECT"),
		BigQueryDataset:  envOr("BIGQUERY_DATASET", "fraud"),
		ArchiveBucket:    os.Getenv("ARCHIVE_BUCKET"),
		ScheduleInterval: DefaultScheduleInterval,
		MaxRetries:       DefaultMaxRetries,
		AlertThreshold:   DefaultAlertThreshold,
		HTTPTimeout:      DefaultHTTPTimeout,
		MetricsAddr:      envOr("METRICS_ADDR", DefaultMetricsAddr),
	}

	if v := os.Getenv("SCHEDULE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid SCHEDULE_INTERVAL %q: %w", v, err)
		}
		cfg.ScheduleInterval = d
	}
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("config: invalid MAX_RETRIES %q", v)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("ALERT_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid ALERT_THRESHOLD %q: %w", v, err)
		}
		cfg.AlertThreshold = f
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case "sqlite3", "postgres":
		if c.StorageDSN == "" {
			return fmt.Errorf("config: STORAGE_DSN is required for driver %q", c.StorageDriver)
		}
	case "bigquery":
		if c.BigQueryProject == "" {
			return fmt.Errorf("config: BIGQUERY_PROJECT is required for the bigquery driver")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.ScheduleInterval <= 0 {
		return fmt.Errorf("config: SCHEDULE_INTERVAL must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
