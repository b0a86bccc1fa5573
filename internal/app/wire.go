// Package app provides the top-level application lifecycle management for
// the trading pipeline: it wires every store and daemon from configuration
// and starts the goroutines for the selected daemon (or all of them),
// generalizing the teacher's app.Run/wire.go/modes.go trio.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anatolysokolov293-max/stock-pg/internal/aggregator"
	"github.com/anatolysokolov293-max/stock-pg/internal/archive"
	"github.com/anatolysokolov293-max/stock-pg/internal/broker"
	"github.com/anatolysokolov293-max/stock-pg/internal/config"
	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
	"github.com/anatolysokolov293-max/stock-pg/internal/health"
	"github.com/anatolysokolov293-max/stock-pg/internal/metrics"
	"github.com/anatolysokolov293-max/stock-pg/internal/risk"
	"github.com/anatolysokolov293-max/stock-pg/internal/store/postgres"
	"github.com/anatolysokolov293-max/stock-pg/internal/strategyrunner"
	"github.com/shopspring/decimal"
)

// Dependencies bundles every store and optional adjunct service a daemon
// needs to run, constructed once by Wire and shared across whichever
// daemons the configured mode starts.
type Dependencies struct {
	Symbols   domain.SymbolStore
	Candles   domain.CandleStore
	Catalog   domain.StrategyCatalogStore
	Universe  domain.StrategyUniverseStore
	Signals   domain.SignalStore
	Orders    domain.OrderStore
	Trades    domain.TradeStore
	Positions domain.PositionStore
	Accounts  domain.AccountStore
	Control   domain.ControlStore
	Errors    domain.ErrorStore
	Status    domain.StatusStore
	Watermark domain.WatermarkStore
	Lots      domain.LotStore

	ArchiveWriter *archive.Writer // nil when S3 archival is disabled
	MetricsServer *metrics.Server // nil when the metrics endpoint is disabled
}

// Wire constructs every store from cfg's PostgreSQL connection, runs
// migrations, and optionally builds the S3 archive writer and the
// Prometheus metrics server. The returned cleanup function closes the
// connection pool; it is idempotent-safe to defer directly.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	pgClient, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, func() {}, fmt.Errorf("app: connect postgres: %w", err)
	}
	cleanup := func() { pgClient.Close() }

	if err := pgClient.RunMigrations(ctx); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("app: run migrations: %w", err)
	}

	pool := pgClient.Pool()
	symbols := postgres.NewSymbolStore(pool)
	deps := &Dependencies{
		Symbols:   symbols,
		Lots:      symbols,
		Candles:   postgres.NewCandleStore(pool),
		Catalog:   postgres.NewStrategyCatalogStore(pool),
		Universe:  postgres.NewStrategyUniverseStore(pool),
		Signals:   postgres.NewSignalStore(pool),
		Orders:    postgres.NewOrderStore(pool),
		Trades:    postgres.NewTradeStore(pool),
		Positions: postgres.NewPositionStore(pool),
		Accounts:  postgres.NewAccountStore(pool),
		Control:   postgres.NewControlStore(pool),
		Errors:    postgres.NewErrorStore(pool),
		Status:    postgres.NewStatusStore(pool),
		Watermark: postgres.NewWatermarkStore(pool),
	}

	if cfg.S3.Enabled {
		s3Client, err := archive.NewClient(ctx, archive.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("app: build s3 client: %w", err)
		}
		deps.ArchiveWriter = archive.NewWriter(s3Client)
	}

	if cfg.Metrics.Enabled {
		deps.MetricsServer = metrics.NewServer(cfg.Metrics.Port)
	}

	return deps, cleanup, nil
}

// buildAggregator constructs the aggregator daemon from cfg and deps.
func buildAggregator(deps *Dependencies, logger *slog.Logger, cfg *config.Config) *aggregator.Aggregator {
	return aggregator.New(
		deps.Candles,
		deps.Positions,
		deps.Symbols,
		deps.Watermark,
		deps.Status,
		deps.Errors,
		logger,
		aggregator.Config{
			GapThreshold:    decimal.NewFromFloat(cfg.Pipeline.GapThreshold),
			PollInterval:    cfg.Pipeline.AggregatorPollInterval.Duration,
			ErrorRetryDelay: cfg.Pipeline.ErrorRetryDelay.Duration,
		},
	)
}

// buildStrategyRunner constructs the strategy runner daemon from cfg and deps.
func buildStrategyRunner(deps *Dependencies, logger *slog.Logger, cfg *config.Config) *strategyrunner.Runner {
	return strategyrunner.New(
		deps.Candles,
		deps.Symbols,
		deps.Catalog,
		deps.Universe,
		deps.Signals,
		deps.Positions,
		deps.Orders,
		deps.Watermark,
		deps.Status,
		deps.Errors,
		strategyrunner.NewRegistry(),
		logger,
		strategyrunner.Config{
			HistoryBars:     cfg.Pipeline.HistoryWindow,
			PollInterval:    cfg.Pipeline.RunnerPollInterval.Duration,
			ErrorRetryDelay: cfg.Pipeline.ErrorRetryDelay.Duration,
		},
	)
}

// buildRiskEngine constructs the execution/risk engine daemon from cfg and deps.
func buildRiskEngine(deps *Dependencies, logger *slog.Logger, cfg *config.Config) *risk.Engine {
	return risk.New(
		deps.Signals,
		deps.Orders,
		deps.Positions,
		deps.Accounts,
		deps.Control,
		deps.Symbols,
		deps.Universe,
		deps.Status,
		deps.Errors,
		logger,
		risk.Config{
			BatchSize:       cfg.Pipeline.SignalBatchSize,
			PollInterval:    cfg.Pipeline.EnginePollInterval.Duration,
			ErrorRetryDelay: cfg.Pipeline.ErrorRetryDelay.Duration,
		},
	)
}

// buildBroker constructs the broker adapter daemon from cfg and deps.
func buildBroker(deps *Dependencies, logger *slog.Logger, cfg *config.Config) *broker.Adapter {
	return broker.New(
		deps.Orders,
		deps.Trades,
		deps.Positions,
		deps.Accounts,
		deps.Candles,
		deps.Symbols,
		deps.Status,
		deps.Errors,
		logger,
		broker.Config{
			FeeRate:         decimal.NewFromFloat(cfg.Pipeline.FeeRate),
			BatchSize:       cfg.Pipeline.OrderBatchSize,
			PollInterval:    cfg.Pipeline.BrokerPollInterval.Duration,
			ErrorRetryDelay: cfg.Pipeline.ErrorRetryDelay.Duration,
		},
	)
}

// buildHealthMonitor constructs the health monitor daemon from cfg and deps.
func buildHealthMonitor(deps *Dependencies, logger *slog.Logger, cfg *config.Config) *health.Monitor {
	return health.New(
		deps.Status,
		deps.Control,
		deps.Candles,
		deps.Errors,
		logger,
		health.Config{
			PollInterval:       cfg.Pipeline.HealthPollInterval.Duration,
			CandleLagThreshold: cfg.Pipeline.CandleLagThreshold.Duration,
			Services:           health.DefaultServices(cfg.Pipeline.ServiceHeartbeatTimeout.Duration),
		},
	)
}

// buildArchiver constructs the cold-storage archiver daemon from cfg and
// deps. It returns nil when no S3 writer was wired (archival disabled).
func buildArchiver(deps *Dependencies, logger *slog.Logger, cfg *config.Config) *archive.Archiver {
	if deps.ArchiveWriter == nil {
		return nil
	}
	return archive.New(
		deps.ArchiveWriter,
		deps.Trades,
		deps.Orders,
		deps.Errors,
		deps.Status,
		logger,
		archive.Config{
			Retention: cfg.Pipeline.ArchiveRetention.Duration,
			Interval:  cfg.Pipeline.ArchiveInterval.Duration,
		},
	)
}
