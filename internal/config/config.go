// Package config defines the top-level configuration for the trading
// pipeline's daemons and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then overridden by STOCKPG_* environment variables, except
// for the five PostgreSQL connection parameters, which per spec always come
// from PG_HOST/PG_PORT/PG_DBNAME/PG_USER/PG_PASSWORD.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Pipeline PipelineConfig `toml:"pipeline"`
	S3       S3Config       `toml:"s3"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Daemon   string         `toml:"daemon"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	DBName       string `toml:"dbname"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// PipelineConfig holds the thresholds and tunables shared by the five
// daemons, per spec.md §4/§6.
type PipelineConfig struct {
	GapThreshold            float64  `toml:"gap_threshold"`
	FeeRate                 float64  `toml:"fee_rate"`
	HistoryWindow           int      `toml:"history_window"`
	SignalBatchSize         int      `toml:"signal_batch_size"`
	OrderBatchSize          int      `toml:"order_batch_size"`
	AggregatorPollInterval  duration `toml:"aggregator_poll_interval"`
	RunnerPollInterval      duration `toml:"runner_poll_interval"`
	EnginePollInterval      duration `toml:"engine_poll_interval"`
	BrokerPollInterval      duration `toml:"broker_poll_interval"`
	HealthPollInterval      duration `toml:"health_poll_interval"`
	ErrorRetryDelay         duration `toml:"error_retry_delay"`
	ServiceHeartbeatTimeout duration `toml:"service_heartbeat_timeout"`
	CandleLagThreshold      duration `toml:"candle_lag_threshold"`
	ArchiveRetention        duration `toml:"archive_retention"`
	ArchiveInterval         duration `toml:"archive_interval"`
}

// S3Config holds parameters for the cold-storage archival exporter.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MetricsConfig holds parameters for the Prometheus scrape endpoint, served
// by its own HTTP server alongside whichever daemons are run.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Defaults returns a Config populated with the thresholds spec.md §4 states
// as defaults.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:         "127.0.0.1",
			Port:         5432,
			DBName:       "stock_db",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Pipeline: PipelineConfig{
			GapThreshold:            0.20,
			FeeRate:                 1e-4,
			HistoryWindow:           500,
			SignalBatchSize:         100,
			OrderBatchSize:          100,
			AggregatorPollInterval:  duration{3 * time.Second},
			RunnerPollInterval:      duration{3 * time.Second},
			EnginePollInterval:      duration{2 * time.Second},
			BrokerPollInterval:      duration{2 * time.Second},
			HealthPollInterval:      duration{10 * time.Second},
			ErrorRetryDelay:         duration{5 * time.Second},
			ServiceHeartbeatTimeout: duration{60 * time.Second},
			CandleLagThreshold:      duration{120 * time.Second},
			ArchiveRetention:        duration{90 * 24 * time.Hour},
			ArchiveInterval:         duration{6 * time.Hour},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "stockpg-archive",
			ForcePathStyle: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Daemon:   "all",
		LogLevel: "info",
	}
}

var validDaemons = map[string]bool{
	"aggregator":    true,
	"strategyrunner": true,
	"execengine":    true,
	"broker":        true,
	"healthmonitor": true,
	"all":           true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validDaemons[strings.ToLower(c.Daemon)] {
		errs = append(errs, fmt.Sprintf("unknown daemon %q (valid: aggregator, strategyrunner, execengine, broker, healthmonitor, all)", c.Daemon))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Postgres.Host == "" {
		errs = append(errs, "postgres: host must not be empty")
	}
	if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
		errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
	}
	if c.Postgres.DBName == "" {
		errs = append(errs, "postgres: dbname must not be empty")
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Pipeline.GapThreshold <= 0 {
		errs = append(errs, "pipeline: gap_threshold must be > 0")
	}
	if c.Pipeline.FeeRate < 0 {
		errs = append(errs, "pipeline: fee_rate must be >= 0")
	}
	if c.Pipeline.HistoryWindow <= 0 {
		errs = append(errs, "pipeline: history_window must be > 0")
	}
	if c.Pipeline.SignalBatchSize <= 0 {
		errs = append(errs, "pipeline: signal_batch_size must be > 0")
	}
	if c.Pipeline.OrderBatchSize <= 0 {
		errs = append(errs, "pipeline: order_batch_size must be > 0")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics: port must be 1-65535, got %d", c.Metrics.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
