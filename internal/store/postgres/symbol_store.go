package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// SymbolStore implements domain.SymbolStore and domain.LotStore using
// PostgreSQL.
type SymbolStore struct {
	pool *pgxpool.Pool
}

// NewSymbolStore creates a new SymbolStore backed by the given connection pool.
func NewSymbolStore(pool *pgxpool.Pool) *SymbolStore {
	return &SymbolStore{pool: pool}
}

func scanSymbol(row pgx.Row) (domain.Symbol, error) {
	var s domain.Symbol
	if err := row.Scan(&s.ID, &s.Ticker, &s.LotSize); err != nil {
		return domain.Symbol{}, err
	}
	return s, nil
}

// GetByID looks up a symbol by its surrogate key.
func (s *SymbolStore) GetByID(ctx context.Context, id int64) (*domain.Symbol, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, ticker, lot_size FROM symbols WHERE id = $1`, id)
	sym, err := scanSymbol(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get symbol %d: %w", id, err)
	}
	return &sym, nil
}

// GetByTicker looks up a symbol by its unique ticker.
func (s *SymbolStore) GetByTicker(ctx context.Context, ticker string) (*domain.Symbol, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, ticker, lot_size FROM symbols WHERE ticker = $1`, ticker)
	sym, err := scanSymbol(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get symbol %q: %w", ticker, err)
	}
	return &sym, nil
}

// List returns every registered symbol.
func (s *SymbolStore) List(ctx context.Context) ([]domain.Symbol, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, ticker, lot_size FROM symbols ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list symbols: %w", err)
	}
	defer rows.Close()

	var out []domain.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// EffectiveLotSize returns the lot size in effect for a symbol as of a given
// date, falling back to the symbol's current lot_size when no lot_history
// row predates it.
func (s *SymbolStore) EffectiveLotSize(ctx context.Context, symbolID int64, asOf time.Time) (int64, error) {
	var lotSize int64
	err := s.pool.QueryRow(ctx, `
		SELECT lot_size FROM lot_history
		WHERE symbol_id = $1 AND effective_at <= $2
		ORDER BY effective_at DESC
		LIMIT 1
	`, symbolID, asOf).Scan(&lotSize)
	if err == nil {
		return lotSize, nil
	}
	if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("postgres: effective lot size for symbol %d: %w", symbolID, err)
	}

	err = s.pool.QueryRow(ctx, `SELECT lot_size FROM symbols WHERE id = $1`, symbolID).Scan(&lotSize)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: fallback lot size for symbol %d: %w", symbolID, err)
	}
	return lotSize, nil
}
