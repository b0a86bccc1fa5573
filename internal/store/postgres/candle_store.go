package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// CandleStore implements domain.CandleStore using PostgreSQL: candles_1m for
// the raw feed, and one candles_<tf> table per maintained timeframe.
type CandleStore struct {
	pool *pgxpool.Pool
}

// NewCandleStore creates a new CandleStore backed by the given connection pool.
func NewCandleStore(pool *pgxpool.Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// InsertCandle1m inserts one closed 1-minute bar. Duplicate (symbol_id, ts)
// is a no-op, matching at-least-once ingest semantics.
func (s *CandleStore) InsertCandle1m(ctx context.Context, c domain.Candle1m) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO candles_1m (symbol_id, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol_id, ts) DO NOTHING
	`, c.SymbolID, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
	if err != nil {
		return fmt.Errorf("postgres: insert candle_1m: %w", err)
	}
	return nil
}

// ListCandle1mAfter returns every 1-minute bar with ts strictly greater than
// ts, ordered by (ts, symbol_id) per spec.md §4.1's ingest ordering. limit<=0
// means unbounded.
func (s *CandleStore) ListCandle1mAfter(ctx context.Context, ts time.Time, limit int) ([]domain.Candle1m, error) {
	query := `
		SELECT symbol_id, ts, open, high, low, close, volume
		FROM candles_1m
		WHERE ts > $1
		ORDER BY ts, symbol_id
	`
	args := []any{ts}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list candle_1m after %s: %w", ts, err)
	}
	defer rows.Close()

	var out []domain.Candle1m
	for rows.Next() {
		var c domain.Candle1m
		if err := rows.Scan(&c.SymbolID, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("postgres: scan candle_1m: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestCandle1mTimestamp returns the most recent 1-minute bar's ts across
// every symbol, or nil if candles_1m is empty.
func (s *CandleStore) LatestCandle1mTimestamp(ctx context.Context) (*time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx, `SELECT max(ts) FROM candles_1m`).Scan(&ts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: latest candle_1m timestamp: %w", err)
	}
	if ts == nil || ts.IsZero() {
		return nil, nil
	}
	return ts, nil
}

// LatestCandle1mClose returns the most recent 1-minute bar for a symbol, used
// by the broker adapter to price fills.
func (s *CandleStore) LatestCandle1mClose(ctx context.Context, symbolID int64) (*domain.Candle1m, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT symbol_id, ts, open, high, low, close, volume
		FROM candles_1m
		WHERE symbol_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`, symbolID)

	var c domain.Candle1m
	err := row.Scan(&c.SymbolID, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: latest candle_1m close for symbol %d: %w", symbolID, err)
	}
	return &c, nil
}

// InsertAggregated inserts one closed bar into the timeframe's candles_<tf>
// table. Duplicate (symbol_id, ts) is a no-op so aggregator replay after a
// crash mid-batch is idempotent.
func (s *CandleStore) InsertAggregated(ctx context.Context, tf domain.Timeframe, c domain.AggregatedCandle) error {
	table := tf.TableName()
	if table == "" {
		return fmt.Errorf("postgres: unknown timeframe %q", tf)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (symbol_id, ts, open, high, low, close, volume, is_gap, gap_dir)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol_id, ts) DO NOTHING
	`, table)
	gapDir := nullableString(c.GapDir)
	_, err := s.pool.Exec(ctx, query, c.SymbolID, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, c.IsGap, gapDir)
	if err != nil {
		return fmt.Errorf("postgres: insert %s: %w", table, err)
	}
	return nil
}

// LastClosedClose returns the most recently closed bar for (tf, symbolID),
// used to rebuild prevC[tf,symbol_id] on aggregator restart.
func (s *CandleStore) LastClosedClose(ctx context.Context, tf domain.Timeframe, symbolID int64) (*domain.AggregatedCandle, error) {
	table := tf.TableName()
	if table == "" {
		return nil, fmt.Errorf("postgres: unknown timeframe %q", tf)
	}
	query := fmt.Sprintf(`
		SELECT symbol_id, ts, open, high, low, close, volume, is_gap, gap_dir
		FROM %s
		WHERE symbol_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`, table)

	row := s.pool.QueryRow(ctx, query, symbolID)
	c, err := scanAggregated(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: last closed close on %s for symbol %d: %w", table, symbolID, err)
	}
	return &c, nil
}

// History returns up to limit closed bars strictly before `before`, oldest
// first, matching the strategy runner's history-window contract.
func (s *CandleStore) History(ctx context.Context, tf domain.Timeframe, symbolID int64, before time.Time, limit int) ([]domain.AggregatedCandle, error) {
	table := tf.TableName()
	if table == "" {
		return nil, fmt.Errorf("postgres: unknown timeframe %q", tf)
	}
	query := fmt.Sprintf(`
		SELECT symbol_id, ts, open, high, low, close, volume, is_gap, gap_dir
		FROM %s
		WHERE symbol_id = $1 AND ts < $2
		ORDER BY ts DESC
		LIMIT $3
	`, table)

	rows, err := s.pool.Query(ctx, query, symbolID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: history on %s for symbol %d: %w", table, symbolID, err)
	}
	defer rows.Close()

	var desc []domain.AggregatedCandle
	for rows.Next() {
		c, err := scanAggregated(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s history: %w", table, err)
		}
		desc = append(desc, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to oldest-first, matching the original strategy_runner's
	// `reversed(rows)` convention.
	out := make([]domain.AggregatedCandle, len(desc))
	for i, c := range desc {
		out[len(desc)-1-i] = c
	}
	return out, nil
}

// ListAggregatedAfter returns every closed bar across every symbol in one
// timeframe with ts strictly greater than `after`, ordered by (ts,
// symbol_id) matching the strategy runner's per-timeframe poll ordering.
// after.IsZero() selects every bar ever closed, used on a fresh watermark.
func (s *CandleStore) ListAggregatedAfter(ctx context.Context, tf domain.Timeframe, after time.Time, limit int) ([]domain.AggregatedCandle, error) {
	table := tf.TableName()
	if table == "" {
		return nil, fmt.Errorf("postgres: unknown timeframe %q", tf)
	}

	var query string
	args := []any{}
	if after.IsZero() {
		query = fmt.Sprintf(`
			SELECT symbol_id, ts, open, high, low, close, volume, is_gap, gap_dir
			FROM %s
			ORDER BY ts, symbol_id
		`, table)
	} else {
		query = fmt.Sprintf(`
			SELECT symbol_id, ts, open, high, low, close, volume, is_gap, gap_dir
			FROM %s
			WHERE ts > $1
			ORDER BY ts, symbol_id
		`, table)
		args = append(args, after)
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s after %s: %w", table, after, err)
	}
	defer rows.Close()

	var out []domain.AggregatedCandle
	for rows.Next() {
		c, err := scanAggregated(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", table, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanAggregated(row pgx.Row) (domain.AggregatedCandle, error) {
	var c domain.AggregatedCandle
	var gapDir *string
	if err := row.Scan(&c.SymbolID, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.IsGap, &gapDir); err != nil {
		return domain.AggregatedCandle{}, err
	}
	if gapDir != nil {
		c.GapDir = *gapDir
	}
	return c, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
