package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// StatusStore implements domain.StatusStore using PostgreSQL.
type StatusStore struct {
	pool *pgxpool.Pool
}

// NewStatusStore creates a new StatusStore.
func NewStatusStore(pool *pgxpool.Pool) *StatusStore {
	return &StatusStore{pool: pool}
}

// Heartbeat upserts a daemon's last-seen timestamp and status detail.
func (s *StatusStore) Heartbeat(ctx context.Context, serviceName string, detail string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO service_status (service_name, last_heartbeat, status)
		VALUES ($1, now(), $2)
		ON CONFLICT (service_name) DO UPDATE SET
			last_heartbeat = now(),
			status         = EXCLUDED.status
	`, serviceName, detail)
	if err != nil {
		return fmt.Errorf("postgres: heartbeat for %s: %w", serviceName, err)
	}
	return nil
}

// Get returns the most recent heartbeat for a named daemon, or nil if it
// has never reported in.
func (s *StatusStore) Get(ctx context.Context, serviceName string) (*domain.ServiceStatus, error) {
	var st domain.ServiceStatus
	err := s.pool.QueryRow(ctx, `
		SELECT service_name, last_heartbeat, status FROM service_status WHERE service_name = $1
	`, serviceName).Scan(&st.ServiceName, &st.LastHeartbeat, &st.Detail)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get service status %s: %w", serviceName, err)
	}
	return &st, nil
}
