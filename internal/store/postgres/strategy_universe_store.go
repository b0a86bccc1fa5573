package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// StrategyUniverseStore implements domain.StrategyUniverseStore using
// PostgreSQL.
type StrategyUniverseStore struct {
	pool *pgxpool.Pool
}

// NewStrategyUniverseStore creates a new StrategyUniverseStore.
func NewStrategyUniverseStore(pool *pgxpool.Pool) *StrategyUniverseStore {
	return &StrategyUniverseStore{pool: pool}
}

// GetByID looks up a strategy universe row by id. symbolID is resolved
// through the symbols table since strategy_universe stores the ticker.
func (s *StrategyUniverseStore) GetByID(ctx context.Context, id int64) (*domain.StrategyUniverse, error) {
	var su domain.StrategyUniverse
	var symbolTicker, tf, mode string
	var paramsRaw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, strategy_id, symbol, timeframe, mode, params_json, risk_per_trade,
		       max_drawdown_fraction, gap_threshold_fraction,
		       max_positions_per_strategy, max_total_positions, enabled
		FROM strategy_universe WHERE id = $1
	`, id).Scan(
		&su.ID, &su.StrategyCatalogID, &symbolTicker, &tf, &mode, &paramsRaw,
		&su.RiskPerTrade, &su.MaxDrawdownFraction, &su.GapThresholdFraction,
		&su.MaxPositionsPerStrategy, &su.MaxTotalPositions, &su.Enabled,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get strategy universe %d: %w", id, err)
	}
	su.Timeframe = domain.Timeframe(tf)
	su.Mode = domain.StrategyMode(mode)
	if len(paramsRaw) > 0 {
		if err := json.Unmarshal(paramsRaw, &su.Params); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal params_json for strategy universe %d: %w", id, err)
		}
	}

	var symbolID int64
	if err := s.pool.QueryRow(ctx, `SELECT id FROM symbols WHERE ticker = $1`, symbolTicker).Scan(&symbolID); err != nil {
		return nil, fmt.Errorf("postgres: resolve symbol %q for strategy universe %d: %w", symbolTicker, id, err)
	}
	su.SymbolID = symbolID

	return &su, nil
}

// ListEnabled returns every strategy_universe row whose own enabled flag and
// whose assigned catalog entry's enabled flag are both set.
func (s *StrategyUniverseStore) ListEnabled(ctx context.Context) ([]domain.StrategyUniverse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT su.id, su.strategy_id, su.symbol, su.timeframe, su.mode, su.params_json,
		       su.risk_per_trade, su.max_drawdown_fraction, su.gap_threshold_fraction,
		       su.max_positions_per_strategy, su.max_total_positions, su.enabled,
		       sy.id
		FROM strategy_universe su
		JOIN symbols sy ON sy.ticker = su.symbol
		JOIN strategy_catalog sc ON sc.id = su.strategy_id
		WHERE su.enabled AND sc.enabled
		ORDER BY su.id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list enabled strategy universe: %w", err)
	}
	defer rows.Close()
	return scanStrategyUniverseRows(rows)
}

// ListBySymbolTimeframe returns the strategy_universe rows eligible for live
// bar dispatch on one symbol and timeframe: the universe row and its catalog
// entry must both be enabled, and the universe must be running in paper or
// live mode. A backtest-mode row, or one whose catalog entry was disabled,
// is excluded here even though the raw row still exists.
func (s *StrategyUniverseStore) ListBySymbolTimeframe(ctx context.Context, symbolID int64, tf domain.Timeframe) ([]domain.StrategyUniverse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT su.id, su.strategy_id, su.symbol, su.timeframe, su.mode, su.params_json,
		       su.risk_per_trade, su.max_drawdown_fraction, su.gap_threshold_fraction,
		       su.max_positions_per_strategy, su.max_total_positions, su.enabled,
		       sy.id
		FROM strategy_universe su
		JOIN symbols sy ON sy.ticker = su.symbol
		JOIN strategy_catalog sc ON sc.id = su.strategy_id
		WHERE su.enabled AND sc.enabled AND su.mode IN ($1, $2)
		      AND su.timeframe = $3 AND sy.id = $4
		ORDER BY su.id
	`, string(domain.StrategyModePaper), string(domain.StrategyModeLive), string(tf), symbolID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list strategy universe for symbol %d tf %s: %w", symbolID, tf, err)
	}
	defer rows.Close()
	return scanStrategyUniverseRows(rows)
}

func scanStrategyUniverseRows(rows pgx.Rows) ([]domain.StrategyUniverse, error) {
	var out []domain.StrategyUniverse
	for rows.Next() {
		var su domain.StrategyUniverse
		var symbol, tf, mode string
		var paramsRaw []byte
		if err := rows.Scan(
			&su.ID, &su.StrategyCatalogID, &symbol, &tf, &mode, &paramsRaw,
			&su.RiskPerTrade, &su.MaxDrawdownFraction, &su.GapThresholdFraction,
			&su.MaxPositionsPerStrategy, &su.MaxTotalPositions, &su.Enabled,
			&su.SymbolID,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan strategy universe: %w", err)
		}
		su.Timeframe = domain.Timeframe(tf)
		su.Mode = domain.StrategyMode(mode)
		if len(paramsRaw) > 0 {
			if err := json.Unmarshal(paramsRaw, &su.Params); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal params_json for strategy universe %d: %w", su.ID, err)
			}
		}
		out = append(out, su)
	}
	return out, rows.Err()
}
