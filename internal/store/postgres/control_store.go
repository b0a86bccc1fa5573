package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// ControlStore implements domain.ControlStore using PostgreSQL's singleton
// trading_control row.
type ControlStore struct {
	pool *pgxpool.Pool
}

// NewControlStore creates a new ControlStore.
func NewControlStore(pool *pgxpool.Pool) *ControlStore {
	return &ControlStore{pool: pool}
}

// Get returns the singleton trading_control row, or nil if it has never
// been initialized (callers should then treat trading as fully enabled).
func (s *ControlStore) Get(ctx context.Context) (*domain.TradingControl, error) {
	var c domain.TradingControl
	var comment *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, allow_trading, allow_new_positions, comment, updated_at
		FROM trading_control WHERE id = 1
	`).Scan(&c.ID, &c.AllowTrading, &c.AllowNewPositions, &comment, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get trading control: %w", err)
	}
	if comment != nil {
		c.Comment = *comment
	}
	return &c, nil
}

// Save upserts the singleton trading_control row.
func (s *ControlStore) Save(ctx context.Context, c domain.TradingControl) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trading_control (id, allow_trading, allow_new_positions, comment, updated_at)
		VALUES (1, $1, $2, NULLIF($3, ''), now())
		ON CONFLICT (id) DO UPDATE SET
			allow_trading       = EXCLUDED.allow_trading,
			allow_new_positions = EXCLUDED.allow_new_positions,
			comment             = EXCLUDED.comment,
			updated_at          = now()
	`, c.AllowTrading, c.AllowNewPositions, c.Comment)
	if err != nil {
		return fmt.Errorf("postgres: save trading control: %w", err)
	}
	return nil
}
