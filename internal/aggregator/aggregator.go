// Package aggregator implements the bar-aggregation daemon: it folds closed
// 1-minute candles into 5m/15m/30m/1h/4h/1d bars, detects gaps against the
// previous closed bar of each timeframe, and flips gap_mode on open
// positions a gap moves against.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anatolysokolov293-max/stock-pg/internal/bucket"
	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

const serviceName = "data_feed"

// Config holds the aggregator's tunables, all sourced from the ambient
// config package.
type Config struct {
	GapThreshold    decimal.Decimal
	PollInterval    time.Duration
	ErrorRetryDelay time.Duration
}

// openBar is the in-memory, not-yet-closed bucket for one (timeframe,
// symbol) pair.
type openBar struct {
	symbolID int64
	startTS  time.Time
	endTS    time.Time
	open     decimal.Decimal
	high     decimal.Decimal
	low      decimal.Decimal
	close    decimal.Decimal
	volume   decimal.Decimal
}

func (b *openBar) updateWithMinute(o, h, l, c, v decimal.Decimal) {
	if b.high.LessThan(h) {
		b.high = h
	}
	if b.low.GreaterThan(l) {
		b.low = l
	}
	b.close = c
	b.volume = b.volume.Add(v)
}

// Aggregator runs the daemon loop. It is not safe for concurrent use; one
// instance owns its in-memory open-bar and last-closed-close state.
type Aggregator struct {
	candles    domain.CandleStore
	positions  domain.PositionStore
	symbols    domain.SymbolStore
	watermarks domain.WatermarkStore
	status     domain.StatusStore
	errors     domain.ErrorStore
	logger     *slog.Logger
	cfg        Config

	currentBars     map[domain.Timeframe]map[int64]*openBar
	lastClosedClose map[domain.Timeframe]map[int64]decimal.Decimal
}

// New constructs an Aggregator.
func New(
	candles domain.CandleStore,
	positions domain.PositionStore,
	symbols domain.SymbolStore,
	watermarks domain.WatermarkStore,
	status domain.StatusStore,
	errs domain.ErrorStore,
	logger *slog.Logger,
	cfg Config,
) *Aggregator {
	currentBars := make(map[domain.Timeframe]map[int64]*openBar, len(domain.Timeframes))
	lastClosed := make(map[domain.Timeframe]map[int64]decimal.Decimal, len(domain.Timeframes))
	for _, tf := range domain.Timeframes {
		currentBars[tf] = make(map[int64]*openBar)
		lastClosed[tf] = make(map[int64]decimal.Decimal)
	}
	return &Aggregator{
		candles:         candles,
		positions:       positions,
		symbols:         symbols,
		watermarks:      watermarks,
		status:          status,
		errors:          errs,
		logger:          logger.With(slog.String("component", serviceName)),
		cfg:             cfg,
		currentBars:     currentBars,
		lastClosedClose: lastClosed,
	}
}

// Run executes the aggregator's main loop until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	a.logger.Info("starting aggregator")

	lastTS, err := a.bootstrapWatermark(ctx)
	if err != nil {
		return fmt.Errorf("aggregator: bootstrap watermark: %w", err)
	}
	if err := a.restoreLastClosedClose(ctx); err != nil {
		return fmt.Errorf("aggregator: restore last closed close: %w", err)
	}

	a.logger.Info("initial watermark", slog.Time("last_1m_timestamp", lastTS))
	if err := a.watermarks.SaveLast1mTimestamp(ctx, lastTS); err != nil {
		return fmt.Errorf("aggregator: save initial watermark: %w", err)
	}
	if err := a.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
		a.logger.Error("heartbeat failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("aggregator stopped")
			return nil
		case <-ticker.C:
		}

		newLastTS, err := a.processBatch(ctx, lastTS)
		if err != nil {
			a.logger.Error("aggregator batch failed", slog.String("error", err.Error()))
			a.logError(ctx, domain.SeverityError, "aggregator main loop failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.cfg.ErrorRetryDelay):
			}
			continue
		}
		lastTS = newLastTS
	}
}

// bootstrapWatermark loads the persisted watermark, or seeds one minute
// before the latest 1-minute bar (LatestCandle1mTimestamp) when no watermark
// exists yet. On such a first start only that latest minute onward is
// aggregated; older 1-minute bars are not folded into any bar. An empty
// candles_1m seeds the watermark 24 hours before now.
func (a *Aggregator) bootstrapWatermark(ctx context.Context) (time.Time, error) {
	state, err := a.watermarks.LoadDatafeedState(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if state != nil && !state.Last1mTimestamp.IsZero() {
		return state.Last1mTimestamp.UTC(), nil
	}

	earliest, err := a.candles.LatestCandle1mTimestamp(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if earliest == nil {
		return time.Now().UTC().Add(-24 * time.Hour), nil
	}
	return earliest.UTC().Add(-time.Minute), nil
}

func (a *Aggregator) restoreLastClosedClose(ctx context.Context) error {
	symbols, err := a.symbols.List(ctx)
	if err != nil {
		return err
	}
	for _, tf := range domain.Timeframes {
		for _, sym := range symbols {
			last, err := a.candles.LastClosedClose(ctx, tf, sym.ID)
			if err != nil {
				return err
			}
			if last != nil {
				a.lastClosedClose[tf][sym.ID] = last.Close
			}
		}
	}
	return nil
}

// processBatch reads every 1-minute bar after lastTS, folds each into every
// maintained timeframe, and returns the new watermark.
func (a *Aggregator) processBatch(ctx context.Context, lastTS time.Time) (time.Time, error) {
	rows, err := a.candles.ListCandle1mAfter(ctx, lastTS, 0)
	if err != nil {
		return lastTS, err
	}
	if len(rows) == 0 {
		if err := a.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
			a.logger.Error("heartbeat failed", slog.String("error", err.Error()))
		}
		return lastTS, nil
	}

	a.logger.Info("new 1m candles", slog.Int("count", len(rows)))

	for _, row := range rows {
		if ts := row.Timestamp.UTC(); ts.After(lastTS) {
			lastTS = ts
		}
		if err := a.processMinuteBar(ctx, row); err != nil {
			return lastTS, err
		}
	}

	if err := a.watermarks.SaveLast1mTimestamp(ctx, lastTS); err != nil {
		return lastTS, err
	}
	if err := a.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
		a.logger.Error("heartbeat failed", slog.String("error", err.Error()))
	}
	return lastTS, nil
}

// processMinuteBar folds one closed 1-minute bar into every maintained
// timeframe's open bucket, closing and re-opening buckets as needed.
func (a *Aggregator) processMinuteBar(ctx context.Context, row domain.Candle1m) error {
	ts := row.Timestamp.UTC()

	for tf, width := range domain.BucketMinutes {
		bucketStart := bucket.FloorToBucket(ts, width)
		bucketEnd := bucket.BucketEnd(bucketStart, width)

		cur := a.currentBars[tf][row.SymbolID]
		if cur == nil {
			a.currentBars[tf][row.SymbolID] = &openBar{
				symbolID: row.SymbolID,
				startTS:  bucketStart,
				endTS:    bucketEnd,
				open:     row.Open,
				high:     row.High,
				low:      row.Low,
				close:    row.Close,
				volume:   row.Volume,
			}
			continue
		}

		if !ts.Before(cur.endTS) {
			if err := a.closeBar(ctx, tf, cur); err != nil {
				return err
			}
			a.currentBars[tf][row.SymbolID] = &openBar{
				symbolID: row.SymbolID,
				startTS:  bucketStart,
				endTS:    bucketEnd,
				open:     row.Open,
				high:     row.High,
				low:      row.Low,
				close:    row.Close,
				volume:   row.Volume,
			}
			continue
		}

		cur.updateWithMinute(row.Open, row.High, row.Low, row.Close, row.Volume)
	}

	return nil
}

// closeBar writes a finished bucket to its candles_xx table, computing the
// gap flag against the timeframe's previously closed bar, and reacts to a
// gap against any open position on the symbol.
func (a *Aggregator) closeBar(ctx context.Context, tf domain.Timeframe, bar *openBar) error {
	prevClose, hadPrev := a.lastClosedClose[tf][bar.symbolID]

	isGap := false
	gapDir := ""
	if hadPrev && prevClose.IsPositive() {
		change := bar.close.Sub(prevClose).Abs().Div(prevClose)
		if change.GreaterThanOrEqual(a.cfg.GapThreshold) {
			isGap = true
			if bar.close.GreaterThan(prevClose) {
				gapDir = "UP"
			} else {
				gapDir = "DOWN"
			}
		}
	}

	closed := domain.AggregatedCandle{
		SymbolID:  bar.symbolID,
		Timestamp: bar.endTS,
		Open:      bar.open,
		High:      bar.high,
		Low:       bar.low,
		Close:     bar.close,
		Volume:    bar.volume,
		IsGap:     isGap,
		GapDir:    gapDir,
	}
	if err := a.candles.InsertAggregated(ctx, tf, closed); err != nil {
		return err
	}
	a.lastClosedClose[tf][bar.symbolID] = bar.close

	if isGap {
		if err := a.markGapPositions(ctx, bar.symbolID, gapDir); err != nil {
			a.logger.Error("mark gap positions failed", slog.String("error", err.Error()))
			a.logError(ctx, domain.SeverityWarning, "mark_gap_positions failed", map[string]any{
				"symbol_id": bar.symbolID,
				"gap_dir":   gapDir,
				"error":     err.Error(),
			})
		}
	}
	return nil
}

// markGapPositions sets gap_mode on every open position the gap direction
// moves against: a LONG hit by a DOWN gap, or a SHORT hit by an UP gap.
func (a *Aggregator) markGapPositions(ctx context.Context, symbolID int64, gapDir string) error {
	open, err := a.positions.ListOpen(ctx)
	if err != nil {
		return err
	}

	var toMark []int64
	for _, pos := range open {
		if pos.SymbolID != symbolID {
			continue
		}
		if (pos.Direction == domain.DirectionLong && gapDir == "DOWN") ||
			(pos.Direction == domain.DirectionShort && gapDir == "UP") {
			toMark = append(toMark, pos.ID)
		}
	}
	if len(toMark) == 0 {
		return nil
	}
	return a.positions.MarkGapMode(ctx, toMark, true)
}

func (a *Aggregator) logError(ctx context.Context, severity domain.ErrorSeverity, message string, details map[string]any) {
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
