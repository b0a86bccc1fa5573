package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert writes one executed fill.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO live_trades (live_order_id, symbol_id, side, quantity, price, fee, trade_type, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.OrderID, t.SymbolID, string(t.Side), t.Quantity, t.Price, t.Fee, t.TradeType, t.ExecutedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert trade: %w", err)
	}
	return nil
}

// ListBefore returns up to limit trades executed strictly before `before`,
// used by the archiver to select rows ready for cold storage.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, live_order_id, symbol_id, side, quantity, price, fee, trade_type, executed_at
		FROM live_trades
		WHERE executed_at < $1
		ORDER BY executed_at
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.OrderID, &t.SymbolID, &side, &t.Quantity, &t.Price, &t.Fee, &t.TradeType, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Side = domain.OrderSide(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteBefore removes every trade executed strictly before `before`,
// called by the archiver once the matching rows are durably exported.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM live_trades WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
