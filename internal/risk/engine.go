package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
	"github.com/anatolysokolov293-max/stock-pg/internal/metrics"
)

const serviceName = "execution_engine"

// Config holds the execution engine's tunables.
type Config struct {
	BatchSize       int
	PollInterval    time.Duration
	ErrorRetryDelay time.Duration
}

// Engine turns admitted strategy signals into broker-bound orders, applying
// the kill-switch, position-count limits, and position sizing in that
// order before an order is ever written.
type Engine struct {
	signals    domain.SignalStore
	orders     domain.OrderStore
	positions  domain.PositionStore
	accounts   domain.AccountStore
	control    domain.ControlStore
	symbols    domain.SymbolStore
	universe   domain.StrategyUniverseStore
	status     domain.StatusStore
	errors     domain.ErrorStore
	logger     *slog.Logger
	cfg        Config
}

// New constructs an Engine.
func New(
	signals domain.SignalStore,
	orders domain.OrderStore,
	positions domain.PositionStore,
	accounts domain.AccountStore,
	control domain.ControlStore,
	symbols domain.SymbolStore,
	universe domain.StrategyUniverseStore,
	status domain.StatusStore,
	errs domain.ErrorStore,
	logger *slog.Logger,
	cfg Config,
) *Engine {
	return &Engine{
		signals:   signals,
		orders:    orders,
		positions: positions,
		accounts:  accounts,
		control:   control,
		symbols:   symbols,
		universe:  universe,
		status:    status,
		errors:    errs,
		logger:    logger.With(slog.String("component", serviceName)),
		cfg:       cfg,
	}
}

// Run executes the engine's main loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("starting execution engine")

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("execution engine stopped")
			return nil
		case <-ticker.C:
		}

		if err := e.processBatch(ctx); err != nil {
			e.logger.Error("execution engine batch failed", slog.String("error", err.Error()))
			e.logError(ctx, domain.SeverityError, "execution engine main loop failed", 0, nil, nil, map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(e.cfg.ErrorRetryDelay):
			}
		}
	}
}

func (e *Engine) processBatch(ctx context.Context) error {
	signals, err := e.signals.ListUnprocessed(ctx, e.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("risk: list unprocessed signals: %w", err)
	}
	if len(signals) == 0 {
		if err := e.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
			e.logger.Error("heartbeat failed", slog.String("error", err.Error()))
		}
		return nil
	}

	e.logger.Info("new signals", slog.Int("count", len(signals)))

	for _, sig := range signals {
		// Poison-pill containment: a failure processing one signal must
		// never block the rest of the batch or the signal forever.
		if err := e.processSignal(ctx, sig); err != nil {
			e.logger.Error("signal processing failed", slog.Int64("signal_id", sig.ID), slog.String("error", err.Error()))
			e.logError(ctx, domain.SeverityError, "signal processing error", sig.StrategyUniverseID, nil, nil, map[string]any{
				"live_signal_id": sig.ID,
				"error":          err.Error(),
			})
			if markErr := e.signals.MarkProcessed(ctx, sig.ID); markErr != nil {
				e.logger.Error("failed to mark poisoned signal processed", slog.Int64("signal_id", sig.ID), slog.String("error", markErr.Error()))
			}
		}
	}

	if err := e.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
		e.logger.Error("heartbeat failed", slog.String("error", err.Error()))
	}
	return nil
}

// processSignal runs the full admission pipeline for one signal: trading
// control, position-count limits, sizing, then order insertion. Every
// non-error exit path marks the signal processed; when it returns an error,
// processBatch marks the signal processed instead.
func (e *Engine) processSignal(ctx context.Context, sig domain.Signal) error {
	su, err := e.universe.GetByID(ctx, sig.StrategyUniverseID)
	if err != nil {
		if err == domain.ErrNotFound {
			e.logError(ctx, domain.SeverityError, "strategy universe not found", sig.StrategyUniverseID, &sig.SymbolID, nil, map[string]any{"live_signal_id": sig.ID})
			return e.signals.MarkProcessed(ctx, sig.ID)
		}
		return err
	}

	control, err := e.control.Get(ctx)
	if err != nil {
		return err
	}
	allowTrading, allowNewPositions := true, true
	if control != nil {
		allowTrading, allowNewPositions = control.AllowTrading, control.AllowNewPositions
	}

	payload := sig.Payload
	isManualClose := payload.Type == domain.SignalTypeManualClose
	isForcedClose := payload.Type == domain.SignalTypeForcedClose

	if !allowTrading && !(isManualClose || isForcedClose) {
		e.logError(ctx, domain.SeverityInfo, "trading_disabled_by_control", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID})
		return e.signals.MarkProcessed(ctx, sig.ID)
	}

	isOpenLike := payload.Type == domain.SignalTypeOpen || payload.Type == domain.SignalTypeAdd || payload.Type == domain.SignalTypeReverse
	if !allowNewPositions && isOpenLike && !(isManualClose || isForcedClose) {
		e.logError(ctx, domain.SeverityInfo, "new_positions_disabled_by_control", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID, "signal_type": payload.Type})
		return e.signals.MarkProcessed(ctx, sig.ID)
	}

	switch payload.Type {
	case domain.SignalTypeOpen, domain.SignalTypeAdd, domain.SignalTypeReverse:
		return e.admitOpen(ctx, sig, su, payload)
	case domain.SignalTypeClose, domain.SignalTypeManualClose, domain.SignalTypeForcedClose:
		return e.admitClose(ctx, sig, su)
	default:
		e.logError(ctx, domain.SeverityWarning, "unknown_signal_type", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID, "signal_type": payload.Type})
		return e.signals.MarkProcessed(ctx, sig.ID)
	}
}

func (e *Engine) admitOpen(ctx context.Context, sig domain.Signal, su *domain.StrategyUniverse, payload domain.SignalPayload) error {
	if !payload.EntryType.Valid() {
		e.logError(ctx, domain.SeverityWarning, "unsupported_order_type", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID, "entry_type": payload.EntryType})
		return e.signals.MarkProcessed(ctx, sig.ID)
	}

	if su.MaxTotalPositions > 0 {
		total, err := e.positions.CountOpen(ctx)
		if err != nil {
			return err
		}
		if total >= su.MaxTotalPositions {
			e.logError(ctx, domain.SeverityWarning, "max_total_positions_reached", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID})
			return e.signals.MarkProcessed(ctx, sig.ID)
		}
	}
	if su.MaxPositionsPerStrategy > 0 {
		open, err := e.positions.CountOpenByStrategyUniverse(ctx, su.ID)
		if err != nil {
			return err
		}
		if open >= su.MaxPositionsPerStrategy {
			e.logError(ctx, domain.SeverityWarning, "max_positions_per_strategy_reached", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID})
			return e.signals.MarkProcessed(ctx, sig.ID)
		}
	}

	account, err := e.accounts.Get(ctx)
	if err != nil {
		return err
	}
	equity, freeCash := decimal.Zero, decimal.Zero
	if account != nil {
		equity, freeCash = account.Equity, account.FreeCash
	}

	symbol, err := e.symbols.GetByID(ctx, sig.SymbolID)
	if err != nil {
		return err
	}
	lotSize := symbol.LotSize
	if lotSize <= 0 {
		lotSize = 1
	}

	maxDD := su.MaxDrawdownFraction
	if maxDD.IsZero() {
		maxDD = decimal.NewFromFloat(0.2)
	}

	result := ComputeOrderSize(SizingInput{
		Equity:              equity,
		FreeCash:             freeCash,
		RiskPerTrade:         su.RiskPerTrade,
		MaxDrawdownFraction:  maxDD,
		LotSize:              lotSize,
		EntryPrice:           payload.EntryPrice,
		StopLoss:             payload.StopLoss,
		SizeMode:             payload.SizeMode,
		SizeValue:            payload.SizeValue,
	})
	if !result.OK {
		e.logError(ctx, domain.SeverityWarning, fmt.Sprintf("signal_rejected: %s", result.Reason), sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{
			"live_signal_id": sig.ID,
			"reason":         result.Reason,
			"entry_price":    payload.EntryPrice.String(),
			"stop_loss":      payload.StopLoss.String(),
		})
		return e.signals.MarkProcessed(ctx, sig.ID)
	}

	var side domain.OrderSide
	switch payload.Direction {
	case domain.DirectionLong:
		side = domain.OrderSideBuy
	case domain.DirectionShort:
		side = domain.OrderSideSell
	default:
		e.logError(ctx, domain.SeverityWarning, "invalid_direction_for_open", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID, "direction": payload.Direction})
		return e.signals.MarkProcessed(ctx, sig.ID)
	}

	quantity := decimal.NewFromInt(result.SizeLots).Mul(decimal.NewFromInt(lotSize))
	price := decimal.Zero
	if payload.EntryType != domain.EntryTypeMarket {
		price = payload.EntryPrice
	}

	order := domain.Order{
		StrategyUniverseID: su.ID,
		SymbolID:           sig.SymbolID,
		Side:               side,
		Type:               payload.EntryType,
		Quantity:           quantity,
		Price:              price,
		Status:             domain.OrderStatusNew,
	}
	if _, err := e.orders.Insert(ctx, order); err != nil {
		return err
	}
	return e.signals.MarkProcessed(ctx, sig.ID)
}

func (e *Engine) admitClose(ctx context.Context, sig domain.Signal, su *domain.StrategyUniverse) error {
	pos, err := e.positions.GetForUpdate(ctx, su.ID)
	if err != nil {
		return err
	}
	if pos == nil || !pos.IsOpen() || pos.Quantity.LessThanOrEqual(decimal.Zero) {
		e.logError(ctx, domain.SeverityInfo, "close_without_position", sig.StrategyUniverseID, &sig.SymbolID, &su.Timeframe, map[string]any{"live_signal_id": sig.ID})
		return e.signals.MarkProcessed(ctx, sig.ID)
	}

	var side domain.OrderSide
	switch pos.Direction {
	case domain.DirectionLong:
		side = domain.OrderSideSell
	case domain.DirectionShort:
		side = domain.OrderSideBuy
	default:
		return e.signals.MarkProcessed(ctx, sig.ID)
	}

	order := domain.Order{
		StrategyUniverseID: su.ID,
		SymbolID:           sig.SymbolID,
		Side:               side,
		Type:               domain.EntryTypeMarket,
		Quantity:           pos.Quantity,
		Status:             domain.OrderStatusNew,
	}
	if _, err := e.orders.Insert(ctx, order); err != nil {
		return err
	}
	return e.signals.MarkProcessed(ctx, sig.ID)
}

func (e *Engine) logError(ctx context.Context, severity domain.ErrorSeverity, message string, suID int64, symbolID *int64, tf *domain.Timeframe, details map[string]any) {
	entry := domain.ErrorLog{
		Source:             "risk",
		Severity:           severity,
		Message:            message,
		CorrelationID:      domain.NewCorrelationID(),
		StrategyUniverseID: &suID,
		SymbolID:           symbolID,
		Timeframe:          tf,
		Details:            details,
	}
	if err := e.errors.Insert(ctx, entry); err != nil {
		e.logger.Error("failed to write error log", slog.String("error", err.Error()))
	}
	if severity == domain.SeverityInfo || severity == domain.SeverityWarning {
		metrics.SignalsRejected.WithLabelValues(message).Inc()
	}
}
