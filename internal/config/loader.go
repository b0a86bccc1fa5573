package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns the
// final Config. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load. A missing path is tolerated
// (defaults plus environment only), matching a local/dev all-in-one run with
// no config file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyPostgresOverrides(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyPostgresOverrides applies the five normative PG_* variables spec.md
// §6 mandates for PostgreSQL connection parameters, distinct from every
// other STOCKPG_*-prefixed override.
func applyPostgresOverrides(cfg *Config) {
	setStr(&cfg.Postgres.Host, "PG_HOST")
	setInt(&cfg.Postgres.Port, "PG_PORT")
	setStr(&cfg.Postgres.DBName, "PG_DBNAME")
	setStr(&cfg.Postgres.User, "PG_USER")
	setStr(&cfg.Postgres.Password, "PG_PASSWORD")
}

// applyEnvOverrides reads well-known STOCKPG_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty).
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.SSLMode, "STOCKPG_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STOCKPG_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STOCKPG_POSTGRES_POOL_MIN_CONNS")

	setFloat64(&cfg.Pipeline.GapThreshold, "STOCKPG_GAP_THRESHOLD")
	setFloat64(&cfg.Pipeline.FeeRate, "STOCKPG_FEE_RATE")
	setInt(&cfg.Pipeline.HistoryWindow, "STOCKPG_HISTORY_WINDOW")
	setInt(&cfg.Pipeline.SignalBatchSize, "STOCKPG_SIGNAL_BATCH_SIZE")
	setInt(&cfg.Pipeline.OrderBatchSize, "STOCKPG_ORDER_BATCH_SIZE")
	setDuration(&cfg.Pipeline.AggregatorPollInterval, "STOCKPG_AGGREGATOR_POLL_INTERVAL")
	setDuration(&cfg.Pipeline.RunnerPollInterval, "STOCKPG_RUNNER_POLL_INTERVAL")
	setDuration(&cfg.Pipeline.EnginePollInterval, "STOCKPG_ENGINE_POLL_INTERVAL")
	setDuration(&cfg.Pipeline.BrokerPollInterval, "STOCKPG_BROKER_POLL_INTERVAL")
	setDuration(&cfg.Pipeline.HealthPollInterval, "STOCKPG_HEALTH_POLL_INTERVAL")
	setDuration(&cfg.Pipeline.ErrorRetryDelay, "STOCKPG_ERROR_RETRY_DELAY")
	setDuration(&cfg.Pipeline.ServiceHeartbeatTimeout, "STOCKPG_SERVICE_HEARTBEAT_TIMEOUT")
	setDuration(&cfg.Pipeline.CandleLagThreshold, "STOCKPG_CANDLE_LAG_THRESHOLD")
	setDuration(&cfg.Pipeline.ArchiveRetention, "STOCKPG_ARCHIVE_RETENTION")
	setDuration(&cfg.Pipeline.ArchiveInterval, "STOCKPG_ARCHIVE_INTERVAL")

	setBool(&cfg.S3.Enabled, "STOCKPG_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "STOCKPG_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STOCKPG_S3_REGION")
	setStr(&cfg.S3.Bucket, "STOCKPG_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STOCKPG_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STOCKPG_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STOCKPG_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STOCKPG_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Metrics.Enabled, "STOCKPG_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "STOCKPG_METRICS_PORT")

	setStr(&cfg.Daemon, "STOCKPG_DAEMON")
	setStr(&cfg.LogLevel, "STOCKPG_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
