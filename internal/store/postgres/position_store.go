package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. Every
// mutation path goes through GetForUpdate's row lock, matching the broker
// adapter's "lock, compute, write" protocol.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionColumns = `id, strategy_universe_id, symbol_id, direction, quantity, avg_price, last_price, realized_pnl, unrealized_pnl, gap_mode, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var direction string
	if err := row.Scan(
		&p.ID, &p.StrategyUniverseID, &p.SymbolID, &direction, &p.Quantity,
		&p.AvgPrice, &p.LastPrice, &p.RealizedPnL, &p.UnrealizedPnL, &p.GapMode, &p.UpdatedAt,
	); err != nil {
		return domain.Position{}, err
	}
	p.Direction = domain.Direction(direction)
	return p, nil
}

// GetForUpdate locks and returns the position row for a strategy universe,
// or nil if no row exists yet (never opened). Callers must be inside a
// transaction for the lock to hold; this pool-level implementation uses an
// implicit single-statement transaction, matching the teacher's
// single-statement lock-then-mutate pattern for short critical sections.
func (s *PositionStore) GetForUpdate(ctx context.Context, strategyUniverseID int64) (*domain.Position, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+positionColumns+`
		FROM live_positions
		WHERE strategy_universe_id = $1
		FOR UPDATE
	`, strategyUniverseID)
	p, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get position for strategy universe %d: %w", strategyUniverseID, err)
	}
	return &p, nil
}

// Upsert writes the full position row, creating it on first open.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO live_positions (
			strategy_universe_id, symbol_id, direction, quantity, avg_price,
			last_price, realized_pnl, unrealized_pnl, gap_mode, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (strategy_universe_id, symbol_id) DO UPDATE SET
			direction      = EXCLUDED.direction,
			quantity       = EXCLUDED.quantity,
			avg_price      = EXCLUDED.avg_price,
			last_price     = EXCLUDED.last_price,
			realized_pnl   = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			gap_mode       = EXCLUDED.gap_mode,
			updated_at     = now()
	`, p.StrategyUniverseID, p.SymbolID, string(p.Direction), p.Quantity, p.AvgPrice,
		p.LastPrice, p.RealizedPnL, p.UnrealizedPnL, p.GapMode)
	if err != nil {
		return fmt.Errorf("postgres: upsert position for strategy universe %d: %w", p.StrategyUniverseID, err)
	}
	return nil
}

// MarkGapMode sets gap_mode on the given position ids, used by the
// aggregator when a bar closes with a gap against an open position.
func (s *PositionStore) MarkGapMode(ctx context.Context, ids []int64, gapMode bool) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE live_positions SET gap_mode = $1, updated_at = now() WHERE id = ANY($2)`, gapMode, ids)
	if err != nil {
		return fmt.Errorf("postgres: mark gap mode: %w", err)
	}
	return nil
}

// ListOpen returns every position currently holding non-flat quantity.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+positionColumns+`
		FROM live_positions
		WHERE direction != $1 AND quantity > 0
		ORDER BY id
	`, string(domain.DirectionFlat))
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountOpen counts every position currently holding non-flat quantity,
// across all strategy universes. This backs max_total_positions admission.
func (s *PositionStore) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM live_positions WHERE direction != $1 AND quantity > 0
	`, string(domain.DirectionFlat)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count open positions: %w", err)
	}
	return n, nil
}

// CountOpenByStrategyUniverse counts open positions for one strategy
// universe. This backs max_positions_per_strategy admission.
func (s *PositionStore) CountOpenByStrategyUniverse(ctx context.Context, strategyUniverseID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM live_positions
		WHERE strategy_universe_id = $1 AND direction != $2 AND quantity > 0
	`, strategyUniverseID, string(domain.DirectionFlat)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count open positions for strategy universe %d: %w", strategyUniverseID, err)
	}
	return n, nil
}
