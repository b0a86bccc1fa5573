package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Insert writes one strategy decision as an unprocessed row.
func (s *SignalStore) Insert(ctx context.Context, sig domain.Signal) (int64, error) {
	payload, err := json.Marshal(sig.Payload)
	if err != nil {
		return 0, fmt.Errorf("postgres: marshal signal payload: %w", err)
	}

	var symbolTicker string
	if err := s.pool.QueryRow(ctx, `SELECT ticker FROM symbols WHERE id = $1`, sig.SymbolID).Scan(&symbolTicker); err != nil {
		return 0, fmt.Errorf("postgres: resolve symbol %d for signal insert: %w", sig.SymbolID, err)
	}

	var universeTimeframe string
	if err := s.pool.QueryRow(ctx, `SELECT timeframe FROM strategy_universe WHERE id = $1`, sig.StrategyUniverseID).Scan(&universeTimeframe); err != nil {
		return 0, fmt.Errorf("postgres: resolve timeframe for strategy universe %d: %w", sig.StrategyUniverseID, err)
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO live_signals (
			strategy_universe_id, symbol, timeframe, bar_timestamp,
			signal_timestamp, signal_type, signal_json
		) VALUES ($1, $2, $3, $4, $4, $5, $6)
		RETURNING id
	`, sig.StrategyUniverseID, symbolTicker, universeTimeframe, sig.SignalTimestamp, string(sig.Payload.Type), payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert signal: %w", err)
	}
	return id, nil
}

// ListUnprocessed returns up to limit unprocessed signals, oldest first.
func (s *SignalStore) ListUnprocessed(ctx context.Context, limit int) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ls.id, ls.strategy_universe_id, sy.id, ls.bar_timestamp, ls.signal_json, ls.processed
		FROM live_signals ls
		JOIN symbols sy ON sy.ticker = ls.symbol
		WHERE NOT ls.processed
		ORDER BY ls.signal_timestamp
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unprocessed signals: %w", err)
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var payloadRaw []byte
		if err := rows.Scan(&sig.ID, &sig.StrategyUniverseID, &sig.SymbolID, &sig.SignalTimestamp, &payloadRaw, &sig.Processed); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		if err := json.Unmarshal(payloadRaw, &sig.Payload); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal signal %d payload: %w", sig.ID, err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// MarkProcessed flips processed to true exactly once. A signal already
// marked processed is left untouched.
func (s *SignalStore) MarkProcessed(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE live_signals SET processed = true, processed_at = now()
		WHERE id = $1 AND NOT processed
	`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark signal %d processed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM live_signals WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check signal %d existence: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
	}
	return nil
}
