package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
	"github.com/anatolysokolov293-max/stock-pg/internal/metrics"
)

const serviceName = "fake_broker"

// Config holds the broker adapter's tunables.
type Config struct {
	FeeRate         decimal.Decimal
	BatchSize       int
	PollInterval    time.Duration
	ErrorRetryDelay time.Duration
}

// Adapter is the simulated broker: it fills NEW orders at the latest
// closed-candle price, charges a flat fee, and mutates position and account
// state accordingly.
type Adapter struct {
	orders    domain.OrderStore
	trades    domain.TradeStore
	positions domain.PositionStore
	accounts  domain.AccountStore
	candles   domain.CandleStore
	symbols   domain.SymbolStore
	status    domain.StatusStore
	errors    domain.ErrorStore
	logger    *slog.Logger
	cfg       Config
}

// New constructs an Adapter.
func New(
	orders domain.OrderStore,
	trades domain.TradeStore,
	positions domain.PositionStore,
	accounts domain.AccountStore,
	candles domain.CandleStore,
	symbols domain.SymbolStore,
	status domain.StatusStore,
	errs domain.ErrorStore,
	logger *slog.Logger,
	cfg Config,
) *Adapter {
	return &Adapter{
		orders:    orders,
		trades:    trades,
		positions: positions,
		accounts:  accounts,
		candles:   candles,
		symbols:   symbols,
		status:    status,
		errors:    errs,
		logger:    logger.With(slog.String("component", serviceName)),
		cfg:       cfg,
	}
}

// Run executes the broker adapter's main loop until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	a.logger.Info("starting broker adapter")

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("broker adapter stopped")
			return nil
		case <-ticker.C:
		}

		if err := a.processBatch(ctx); err != nil {
			a.logger.Error("broker adapter batch failed", slog.String("error", err.Error()))
			a.logError(ctx, domain.SeverityError, "Error in broker adapter main loop", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.cfg.ErrorRetryDelay):
			}
		}
	}
}

func (a *Adapter) processBatch(ctx context.Context) error {
	orders, err := a.orders.ListNew(ctx, a.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("broker: list new orders: %w", err)
	}
	if len(orders) == 0 {
		if err := a.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
			a.logger.Error("heartbeat failed", slog.String("error", err.Error()))
		}
		return nil
	}

	a.logger.Info("new orders", slog.Int("count", len(orders)))

	for _, o := range orders {
		// Each order is its own unit of work: a failure executing one
		// order rejects that order and moves on, matching every other
		// daemon's poison-pill containment.
		if err := a.executeOrder(ctx, o); err != nil {
			a.logger.Error("order execution failed", slog.Int64("order_id", o.ID), slog.String("error", err.Error()))
			a.logError(ctx, domain.SeverityError, "Error executing order", map[string]any{"order_id": o.ID, "error": err.Error()})
			metrics.OrdersByOutcome.WithLabelValues("rejected").Inc()
			if updErr := a.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusRejected, ""); updErr != nil {
				a.logger.Error("failed to mark order rejected", slog.Int64("order_id", o.ID), slog.String("error", updErr.Error()))
			}
		}
	}

	if err := a.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
		a.logger.Error("heartbeat failed", slog.String("error", err.Error()))
	}
	return nil
}

// executeOrder prices, fills, and records one order: no market price rejects
// it outright; otherwise it applies the fee, mutates the position under a
// row lock, updates account cash, records the trade, and marks the order
// filled.
func (a *Adapter) executeOrder(ctx context.Context, o domain.Order) error {
	if !o.Type.Valid() {
		a.logError(ctx, domain.SeverityWarning, "unsupported_order_type", map[string]any{"order_id": o.ID, "order_type": o.Type})
		metrics.OrdersByOutcome.WithLabelValues("rejected").Inc()
		return a.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusRejected, "")
	}

	marketPrice, err := a.latestPrice(ctx, o.SymbolID)
	if err != nil {
		return err
	}
	if marketPrice == nil {
		a.logError(ctx, domain.SeverityWarning, "no_market_price_for_symbol", map[string]any{"order_id": o.ID, "symbol_id": o.SymbolID})
		metrics.OrdersByOutcome.WithLabelValues("rejected").Inc()
		return a.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusRejected, "")
	}

	execPrice := *marketPrice
	notional := execPrice.Mul(o.Quantity)
	fee := notional.Mul(a.cfg.FeeRate)

	existing, err := a.positions.GetForUpdate(ctx, o.StrategyUniverseID)
	if err != nil {
		return err
	}
	updated := ApplyFill(existing, o.Side, o.Quantity, execPrice, o.StrategyUniverseID, o.SymbolID)
	updated.LastPrice = execPrice
	if err := a.positions.Upsert(ctx, updated); err != nil {
		return err
	}

	account, err := a.accounts.Get(ctx)
	if err != nil {
		return err
	}
	state := domain.AccountState{ID: 1}
	if account != nil {
		state = *account
	}
	switch o.Side {
	case domain.OrderSideBuy:
		state.FreeCash = state.FreeCash.Sub(notional).Sub(fee)
	case domain.OrderSideSell:
		state.FreeCash = state.FreeCash.Add(notional).Sub(fee)
	}
	state.Equity = state.FreeCash.Add(state.UsedMargin)
	if err := a.accounts.Save(ctx, state); err != nil {
		return err
	}

	trade := domain.Trade{
		OrderID:    o.ID,
		SymbolID:   o.SymbolID,
		Side:       o.Side,
		Quantity:   o.Quantity,
		Price:      execPrice,
		Fee:        fee,
		TradeType:  "FILL",
		ExecutedAt: time.Now().UTC(),
	}
	if err := a.trades.Insert(ctx, trade); err != nil {
		return err
	}

	metrics.OrdersByOutcome.WithLabelValues("filled").Inc()
	return a.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusFilled, fmt.Sprintf("fake-%d", o.ID))
}

// latestPrice returns the most recent closed 1-minute close for a symbol.
func (a *Adapter) latestPrice(ctx context.Context, symbolID int64) (*decimal.Decimal, error) {
	latest, err := a.candles.LatestCandle1mClose(ctx, symbolID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return &latest.Close, nil
}

func (a *Adapter) logError(ctx context.Context, severity domain.ErrorSeverity, message string, details map[string]any) {
	entry := domain.ErrorLog{
		Source:        serviceName,
		Severity:      severity,
		Message:       message,
		CorrelationID: domain.NewCorrelationID(),
		Details:       details,
	}
	if err := a.errors.Insert(ctx, entry); err != nil {
		a.logger.Error("failed to write error log", slog.String("error", err.Error()))
	}
}
