package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL's singleton
// account_state row.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Get returns the singleton account_state row, or nil if it has never been
// initialized.
func (s *AccountStore) Get(ctx context.Context) (*domain.AccountState, error) {
	var a domain.AccountState
	err := s.pool.QueryRow(ctx, `SELECT id, equity, free_cash, used_margin FROM account_state WHERE id = 1`).
		Scan(&a.ID, &a.Equity, &a.FreeCash, &a.UsedMargin)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get account state: %w", err)
	}
	return &a, nil
}

// Save upserts the singleton account_state row.
func (s *AccountStore) Save(ctx context.Context, a domain.AccountState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_state (id, equity, free_cash, used_margin, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			equity      = EXCLUDED.equity,
			free_cash   = EXCLUDED.free_cash,
			used_margin = EXCLUDED.used_margin,
			updated_at  = now()
	`, a.Equity, a.FreeCash, a.UsedMargin)
	if err != nil {
		return fmt.Errorf("postgres: save account state: %w", err)
	}
	return nil
}
