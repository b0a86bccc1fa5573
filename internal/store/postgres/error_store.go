package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// ErrorStore implements domain.ErrorStore using PostgreSQL.
type ErrorStore struct {
	pool *pgxpool.Pool
}

// NewErrorStore creates a new ErrorStore.
func NewErrorStore(pool *pgxpool.Pool) *ErrorStore {
	return &ErrorStore{pool: pool}
}

// Insert writes one diagnostic or rejection entry.
func (s *ErrorStore) Insert(ctx context.Context, e domain.ErrorLog) error {
	var detailsRaw []byte
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("postgres: marshal error details: %w", err)
		}
		detailsRaw = raw
	}

	var tf *string
	if e.Timeframe != nil {
		s := string(*e.Timeframe)
		tf = &s
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO live_errors (source, severity, strategy_universe_id, symbol_id, timeframe, message, correlation_id, details_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.Source, string(e.Severity), e.StrategyUniverseID, e.SymbolID, tf, e.Message, nullableString(e.CorrelationID), detailsRaw)
	if err != nil {
		return fmt.Errorf("postgres: insert error log: %w", err)
	}
	return nil
}

// ListBefore returns up to limit error log entries with ts strictly before
// `before`, used by the archiver.
func (s *ErrorStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ErrorLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, source, severity, strategy_universe_id, symbol_id, timeframe, message, correlation_id, details_json
		FROM live_errors
		WHERE ts < $1
		ORDER BY ts
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list errors before %s: %w", before, err)
	}
	defer rows.Close()

	var out []domain.ErrorLog
	for rows.Next() {
		var e domain.ErrorLog
		var severity string
		var tf *string
		var correlationID *string
		var detailsRaw []byte
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Source, &severity, &e.StrategyUniverseID, &e.SymbolID, &tf, &e.Message, &correlationID, &detailsRaw); err != nil {
			return nil, fmt.Errorf("postgres: scan error log: %w", err)
		}
		e.Severity = domain.ErrorSeverity(severity)
		if correlationID != nil {
			e.CorrelationID = *correlationID
		}
		if tf != nil {
			timeframe := domain.Timeframe(*tf)
			e.Timeframe = &timeframe
		}
		if len(detailsRaw) > 0 {
			if err := json.Unmarshal(detailsRaw, &e.Details); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal error %d details: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBefore removes every error log entry with ts strictly before
// `before`.
func (s *ErrorStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM live_errors WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete errors before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
