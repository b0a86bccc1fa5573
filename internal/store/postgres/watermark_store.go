package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// WatermarkStore implements domain.WatermarkStore using PostgreSQL.
type WatermarkStore struct {
	pool *pgxpool.Pool
}

// NewWatermarkStore creates a new WatermarkStore.
func NewWatermarkStore(pool *pgxpool.Pool) *WatermarkStore {
	return &WatermarkStore{pool: pool}
}

// LoadDatafeedState returns the aggregator's persisted watermark, or nil if
// it has never run.
func (s *WatermarkStore) LoadDatafeedState(ctx context.Context) (*domain.DatafeedState, error) {
	var d domain.DatafeedState
	err := s.pool.QueryRow(ctx, `SELECT id, last_1m_timestamp FROM datafeed_state WHERE id = 1`).
		Scan(&d.ID, &d.Last1mTimestamp)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: load datafeed state: %w", err)
	}
	return &d, nil
}

// SaveLast1mTimestamp upserts the aggregator's watermark. Callers are
// expected to only ever advance ts; the store does not itself enforce
// monotonicity, matching the teacher's thin-store convention.
func (s *WatermarkStore) SaveLast1mTimestamp(ctx context.Context, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO datafeed_state (id, last_1m_timestamp)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_1m_timestamp = EXCLUDED.last_1m_timestamp
	`, ts)
	if err != nil {
		return fmt.Errorf("postgres: save datafeed watermark: %w", err)
	}
	return nil
}

// LoadBarStates returns every persisted per-timeframe watermark for one
// daemon, used by the strategy runner to resume each timeframe's loop
// independently after a restart.
func (s *WatermarkStore) LoadBarStates(ctx context.Context, serviceName string) ([]domain.BarState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT service_name, timeframe, last_bar_timestamp
		FROM bar_state
		WHERE service_name = $1
	`, serviceName)
	if err != nil {
		return nil, fmt.Errorf("postgres: load bar states for %s: %w", serviceName, err)
	}
	defer rows.Close()

	var out []domain.BarState
	for rows.Next() {
		var b domain.BarState
		var tf string
		if err := rows.Scan(&b.ServiceName, &tf, &b.LastBarTimestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan bar state: %w", err)
		}
		b.Timeframe = domain.Timeframe(tf)
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveBarState upserts one daemon's per-timeframe watermark.
func (s *WatermarkStore) SaveBarState(ctx context.Context, b domain.BarState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bar_state (service_name, timeframe, last_bar_timestamp, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (service_name, timeframe) DO UPDATE SET
			last_bar_timestamp = EXCLUDED.last_bar_timestamp,
			updated_at         = now()
	`, b.ServiceName, string(b.Timeframe), b.LastBarTimestamp)
	if err != nil {
		return fmt.Errorf("postgres: save bar state for %s/%s: %w", b.ServiceName, b.Timeframe, err)
	}
	return nil
}

// DeleteBarState removes one daemon's per-timeframe watermark, used when a
// timeframe is retired from the strategy universe.
func (s *WatermarkStore) DeleteBarState(ctx context.Context, serviceName string, tf domain.Timeframe) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bar_state WHERE service_name = $1 AND timeframe = $2`, serviceName, string(tf))
	if err != nil {
		return fmt.Errorf("postgres: delete bar state for %s/%s: %w", serviceName, tf, err)
	}
	return nil
}
