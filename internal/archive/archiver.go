package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

const serviceName = "archiver"

// Config holds the archiver daemon's tunables.
type Config struct {
	Retention time.Duration
	Interval  time.Duration
}

// Archiver periodically exports terminal rows from live_trades, live_orders,
// and live_errors older than a retention window to S3-compatible storage,
// then removes the exported rows from Postgres.
type Archiver struct {
	writer  *Writer
	trades  domain.TradeStore
	orders  domain.OrderStore
	errors  domain.ErrorStore
	status  domain.StatusStore
	logger  *slog.Logger
	cfg     Config

	batchSize int
}

// New constructs an Archiver.
func New(
	writer *Writer,
	trades domain.TradeStore,
	orders domain.OrderStore,
	errs domain.ErrorStore,
	status domain.StatusStore,
	logger *slog.Logger,
	cfg Config,
) *Archiver {
	return &Archiver{
		writer:    writer,
		trades:    trades,
		orders:    orders,
		errors:    errs,
		status:    status,
		logger:    logger.With(slog.String("component", serviceName)),
		cfg:       cfg,
		batchSize: 5000,
	}
}

// Run executes the archiver's main loop until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("starting archiver")

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return nil
		case <-ticker.C:
		}

		if err := a.runOnce(ctx); err != nil {
			a.logger.Error("archive pass failed", slog.String("error", err.Error()))
			a.logError(ctx, "archive pass failed", map[string]any{"error": err.Error()})
			continue
		}

		if err := a.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
			a.logger.Error("heartbeat failed", slog.String("error", err.Error()))
		}
	}
}

func (a *Archiver) runOnce(ctx context.Context) error {
	before := time.Now().UTC().Add(-a.cfg.Retention)

	tradesN, err := a.archiveTrades(ctx, before)
	if err != nil {
		return fmt.Errorf("archiver: trades: %w", err)
	}
	ordersN, err := a.archiveOrders(ctx, before)
	if err != nil {
		return fmt.Errorf("archiver: orders: %w", err)
	}
	errorsN, err := a.archiveErrors(ctx, before)
	if err != nil {
		return fmt.Errorf("archiver: errors: %w", err)
	}

	if tradesN+ordersN+errorsN > 0 {
		a.logger.Info("archive pass complete",
			slog.Int64("trades", tradesN),
			slog.Int64("orders", ordersN),
			slog.Int64("errors", errorsN),
		)
	}
	return nil
}

// archiveTrades exports every trade executed before `before` in one JSONL
// object per calendar month, then deletes the exported rows.
func (a *Archiver) archiveTrades(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.trades.ListBefore(ctx, before, a.batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	payload, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("marshal trades: %w", err)
	}
	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, payload, "application/x-ndjson"); err != nil {
		return 0, err
	}

	n, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("delete archived trades: %w", err)
	}
	return n, nil
}

// archiveOrders exports every FILLED/REJECTED order created before `before`,
// then deletes the exported rows. NEW orders are never touched, live work
// stays live regardless of age.
func (a *Archiver) archiveOrders(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.orders.ListTerminalBefore(ctx, before, a.batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	payload, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("marshal orders: %w", err)
	}
	path := archivePath("orders", before)
	if err := a.writer.Put(ctx, path, payload, "application/x-ndjson"); err != nil {
		return 0, err
	}

	n, err := a.orders.DeleteTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("delete archived orders: %w", err)
	}
	return n, nil
}

// archiveErrors exports every error log entry created before `before`, then
// deletes the exported rows.
func (a *Archiver) archiveErrors(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.errors.ListBefore(ctx, before, a.batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	payload, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("marshal errors: %w", err)
	}
	path := archivePath("errors", before)
	if err := a.writer.Put(ctx, path, payload, "application/x-ndjson"); err != nil {
		return 0, err
	}

	n, err := a.errors.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("delete archived errors: %w", err)
	}
	return n, nil
}

// archivePath buckets exported rows by the month of the retention cutoff,
// e.g. archive/trades/2026-04.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

func marshalJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (a *Archiver) logError(ctx context.Context, message string, details map[string]any) {
	entry := domain.ErrorLog{
		Source:        serviceName,
		Severity:      domain.SeverityError,
		Message:       message,
		CorrelationID: domain.NewCorrelationID(),
		Details:       details,
	}
	if err := a.errors.Insert(ctx, entry); err != nil {
		a.logger.Error("failed to write error log", slog.String("error", err.Error()))
	}
}
