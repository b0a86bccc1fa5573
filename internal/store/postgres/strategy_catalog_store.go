package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// StrategyCatalogStore implements domain.StrategyCatalogStore using
// PostgreSQL.
type StrategyCatalogStore struct {
	pool *pgxpool.Pool
}

// NewStrategyCatalogStore creates a new StrategyCatalogStore.
func NewStrategyCatalogStore(pool *pgxpool.Pool) *StrategyCatalogStore {
	return &StrategyCatalogStore{pool: pool}
}

func scanCatalogEntry(row pgx.Row) (domain.StrategyCatalogEntry, error) {
	var e domain.StrategyCatalogEntry
	var code, liveClassKey *string
	if err := row.Scan(&e.ID, &code, &liveClassKey, &e.Enabled); err != nil {
		return domain.StrategyCatalogEntry{}, err
	}
	if code != nil {
		e.Name = *code
	}
	if liveClassKey != nil {
		e.LiveClassKey = *liveClassKey
	}
	return e, nil
}

// GetByID looks up a catalog entry by id.
func (s *StrategyCatalogStore) GetByID(ctx context.Context, id int64) (*domain.StrategyCatalogEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, code, live_class_key, enabled FROM strategy_catalog WHERE id = $1`, id)
	e, err := scanCatalogEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get strategy catalog entry %d: %w", id, err)
	}
	return &e, nil
}

// List returns every enabled catalog entry.
func (s *StrategyCatalogStore) List(ctx context.Context) ([]domain.StrategyCatalogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, live_class_key, enabled
		FROM strategy_catalog
		WHERE enabled
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list strategy catalog: %w", err)
	}
	defer rows.Close()

	var out []domain.StrategyCatalogEntry
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan strategy catalog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
