// Package strategyrunner implements the strategy runner daemon: it watches
// every maintained timeframe for newly closed aggregated bars, dispatches
// each to the strategy universe rows assigned to its symbol/timeframe, and
// records whatever signal each strategy's on_bar call returns.
package strategyrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
	"github.com/anatolysokolov293-max/stock-pg/internal/metrics"
)

const serviceName = "strategy_runner"

// Config holds the strategy runner's tunables.
type Config struct {
	HistoryBars     int
	PollInterval    time.Duration
	ErrorRetryDelay time.Duration
}

// Runner runs the daemon loop. It caches one Strategy instance per
// strategy_universe_id so strategies that hold no mutable state (all of
// them, per the Strategy contract) are built once and reused indefinitely.
type Runner struct {
	candles   domain.CandleStore
	symbols   domain.SymbolStore
	catalog   domain.StrategyCatalogStore
	universe  domain.StrategyUniverseStore
	signals   domain.SignalStore
	positions domain.PositionStore
	orders    domain.OrderStore
	watermark domain.WatermarkStore
	status    domain.StatusStore
	errors    domain.ErrorStore
	registry  *Registry
	logger    *slog.Logger
	cfg       Config

	instanceByUniverseID map[int64]domain.Strategy
}

// New constructs a Runner.
func New(
	candles domain.CandleStore,
	symbols domain.SymbolStore,
	catalog domain.StrategyCatalogStore,
	universe domain.StrategyUniverseStore,
	signals domain.SignalStore,
	positions domain.PositionStore,
	orders domain.OrderStore,
	watermark domain.WatermarkStore,
	status domain.StatusStore,
	errs domain.ErrorStore,
	registry *Registry,
	logger *slog.Logger,
	cfg Config,
) *Runner {
	return &Runner{
		candles:              candles,
		symbols:              symbols,
		catalog:              catalog,
		universe:             universe,
		signals:              signals,
		positions:            positions,
		orders:               orders,
		watermark:            watermark,
		status:               status,
		errors:               errs,
		registry:             registry,
		logger:               logger.With(slog.String("component", serviceName)),
		cfg:                  cfg,
		instanceByUniverseID: make(map[int64]domain.Strategy),
	}
}

// Run executes the strategy runner's main loop until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("starting strategy runner")

	lastTS, err := r.bootstrapWatermarks(ctx)
	if err != nil {
		return fmt.Errorf("strategyrunner: bootstrap watermarks: %w", err)
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("strategy runner stopped")
			return nil
		case <-ticker.C:
		}

		if err := r.processAllTimeframes(ctx, lastTS); err != nil {
			r.logger.Error("strategy runner batch failed", slog.String("error", err.Error()))
			r.logError(ctx, domain.SeverityError, "strategy_runner main loop failed", nil, nil, nil, map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.ErrorRetryDelay):
			}
			continue
		}

		if err := r.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
			r.logger.Error("heartbeat failed", slog.String("error", err.Error()))
		}
	}
}

func (r *Runner) bootstrapWatermarks(ctx context.Context) (map[domain.Timeframe]time.Time, error) {
	states, err := r.watermark.LoadBarStates(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	byTF := make(map[domain.Timeframe]time.Time, len(states))
	for _, s := range states {
		byTF[s.Timeframe] = s.LastBarTimestamp.UTC()
	}
	for _, tf := range domain.Timeframes {
		if _, ok := byTF[tf]; !ok {
			byTF[tf] = time.Time{}
		}
	}
	return byTF, nil
}

func (r *Runner) processAllTimeframes(ctx context.Context, lastTS map[domain.Timeframe]time.Time) error {
	for _, tf := range domain.Timeframes {
		newTS, err := r.processTimeframe(ctx, tf, lastTS[tf])
		if err != nil {
			return fmt.Errorf("strategyrunner: process %s: %w", tf, err)
		}
		if newTS.After(lastTS[tf]) {
			lastTS[tf] = newTS
			if err := r.watermark.SaveBarState(ctx, domain.BarState{
				ServiceName:      serviceName,
				Timeframe:        tf,
				LastBarTimestamp: newTS,
			}); err != nil {
				return fmt.Errorf("strategyrunner: save bar state for %s: %w", tf, err)
			}
		}
	}
	return nil
}

// processTimeframe dispatches every newly closed bar in one timeframe to the
// strategy universe rows assigned to its symbol, and returns the new
// watermark (the timestamp of the latest bar it saw, even when no strategy
// was assigned).
func (r *Runner) processTimeframe(ctx context.Context, tf domain.Timeframe, lastTS time.Time) (time.Time, error) {
	bars, err := r.candles.ListAggregatedAfter(ctx, tf, lastTS, 0)
	if err != nil {
		return lastTS, err
	}
	if len(bars) == 0 {
		return lastTS, nil
	}

	r.logger.Info("new bars", slog.String("timeframe", string(tf)), slog.Int("count", len(bars)))

	newTS := lastTS
	for _, bar := range bars {
		if bar.Timestamp.After(newTS) {
			newTS = bar.Timestamp
		}

		sym, err := r.symbols.GetByID(ctx, bar.SymbolID)
		if err != nil || sym == nil {
			r.logger.Warn("unknown symbol, skipping bar", slog.Int64("symbol_id", bar.SymbolID))
			continue
		}

		universes, err := r.universe.ListBySymbolTimeframe(ctx, bar.SymbolID, tf)
		if err != nil {
			return newTS, err
		}
		if len(universes) == 0 {
			continue
		}

		history, err := r.candles.History(ctx, tf, bar.SymbolID, bar.Timestamp, r.cfg.HistoryBars)
		if err != nil {
			return newTS, err
		}

		for _, su := range universes {
			// ListBySymbolTimeframe already filters on these; re-checked here
			// so a stale cached row can never slip a disabled/backtest
			// universe through to a strategy's on_bar call.
			if !su.Enabled || !su.Mode.Dispatchable() {
				continue
			}
			r.dispatchOne(ctx, su, sym.Ticker, tf, bar, history)
		}
	}

	return newTS, nil
}

// dispatchOne builds one strategy universe's StrategyContext and runs its
// on_bar call; any failure is contained to this universe so it cannot stall
// the rest of the batch.
func (r *Runner) dispatchOne(
	ctx context.Context,
	su domain.StrategyUniverse,
	ticker string,
	tf domain.Timeframe,
	bar domain.AggregatedCandle,
	history []domain.AggregatedCandle,
) {
	strategy, err := r.strategyFor(ctx, su)
	if err != nil {
		if errors.Is(err, domain.ErrStrategyDisabled) {
			return
		}
		r.logger.Error("strategy resolution failed", slog.Int64("strategy_universe_id", su.ID), slog.String("error", err.Error()))
		r.logError(ctx, domain.SeverityWarning, "strategy resolution failed", &su.ID, &su.SymbolID, &tf, map[string]any{"error": err.Error()})
		return
	}

	position, err := r.loadPositionInfo(ctx, su.ID)
	if err != nil {
		r.logger.Error("load position failed", slog.Int64("strategy_universe_id", su.ID), slog.String("error", err.Error()))
		r.logError(ctx, domain.SeverityWarning, "load position failed", &su.ID, &su.SymbolID, &tf, map[string]any{"error": err.Error()})
		return
	}

	orders, err := r.loadOrderInfo(ctx, su.ID)
	if err != nil {
		r.logger.Error("load orders failed", slog.Int64("strategy_universe_id", su.ID), slog.String("error", err.Error()))
		r.logError(ctx, domain.SeverityWarning, "load orders failed", &su.ID, &su.SymbolID, &tf, map[string]any{"error": err.Error()})
		return
	}

	strategyCtx := &domain.StrategyContext{
		Ctx:                  ctx,
		SymbolID:             su.SymbolID,
		Ticker:               ticker,
		Timeframe:            tf,
		Bar:                  bar,
		History:              history,
		Position:             position,
		Orders:               orders,
		Params:               su.Params,
		RiskPerTrade:         su.RiskPerTrade.InexactFloat64(),
		MaxDrawdownFraction:  su.MaxDrawdownFraction.InexactFloat64(),
		GapThresholdFraction: su.GapThresholdFraction.InexactFloat64(),
	}

	signal, err := strategy.OnBar(strategyCtx)
	if err != nil {
		r.logger.Error("strategy on_bar failed", slog.Int64("strategy_universe_id", su.ID), slog.String("error", err.Error()))
		r.logError(ctx, domain.SeverityWarning, "strategy on_bar failed", &su.ID, &su.SymbolID, &tf, map[string]any{"error": err.Error()})
		return
	}
	if signal == nil {
		return
	}

	sig := domain.Signal{
		StrategyUniverseID: su.ID,
		SymbolID:           su.SymbolID,
		SignalTimestamp:    bar.Timestamp,
		Payload:            *signal,
	}
	if _, err := r.signals.Insert(ctx, sig); err != nil {
		r.logger.Error("insert signal failed", slog.Int64("strategy_universe_id", su.ID), slog.String("error", err.Error()))
		r.logError(ctx, domain.SeverityWarning, "insert signal failed", &su.ID, &su.SymbolID, &tf, map[string]any{"error": err.Error()})
		return
	}
	metrics.SignalsEmitted.WithLabelValues(strconv.FormatInt(su.StrategyCatalogID, 10)).Inc()
}

// strategyFor returns the cached Strategy instance for a strategy universe,
// building and caching one on first use.
func (r *Runner) strategyFor(ctx context.Context, su domain.StrategyUniverse) (domain.Strategy, error) {
	if s, ok := r.instanceByUniverseID[su.ID]; ok {
		return s, nil
	}

	entry, err := r.catalog.GetByID(ctx, su.StrategyCatalogID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("strategy_catalog entry %d not found", su.StrategyCatalogID)
	}
	if !entry.Enabled {
		return nil, domain.ErrStrategyDisabled
	}

	strategy, err := r.registry.Build(entry.LiveClassKey, su.Params)
	if err != nil {
		return nil, err
	}
	r.instanceByUniverseID[su.ID] = strategy
	return strategy, nil
}

func (r *Runner) loadPositionInfo(ctx context.Context, strategyUniverseID int64) (*domain.PositionInfo, error) {
	pos, err := r.positions.GetForUpdate(ctx, strategyUniverseID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, nil
	}
	return &domain.PositionInfo{
		Quantity:  pos.Quantity,
		AvgPrice:  pos.AvgPrice,
		Direction: pos.Direction,
		GapMode:   pos.GapMode,
	}, nil
}

func (r *Runner) loadOrderInfo(ctx context.Context, strategyUniverseID int64) ([]domain.OrderInfo, error) {
	orders, err := r.orders.ListOpenByStrategyUniverse(ctx, strategyUniverseID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderInfo, 0, len(orders))
	for _, o := range orders {
		out = append(out, domain.OrderInfo{
			ID:       o.ID,
			Side:     o.Side,
			Status:   o.Status,
			Quantity: o.Quantity,
			Price:    o.Price,
		})
	}
	return out, nil
}

func (r *Runner) logError(ctx context.Context, severity domain.ErrorSeverity, message string, strategyUniverseID, symbolID *int64, tf *domain.Timeframe, details map[string]any) {
	entry := domain.ErrorLog{
		Source:        serviceName,
		Severity:      severity,
		Message:       message,
		CorrelationID: domain.NewCorrelationID(),
		Details:       details,
	}
	if strategyUniverseID != nil {
		entry.StrategyUniverseID = strategyUniverseID
	}
	if symbolID != nil {
		entry.SymbolID = symbolID
	}
	if tf != nil {
		entry.Timeframe = tf
	}
	if err := r.errors.Insert(ctx, entry); err != nil {
		r.logger.Error("failed to write error log", slog.String("error", err.Error()))
	}
}
