package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, strategy_universe_id, symbol_id, side, order_type, quantity, price, status, broker_order_id, created_at, filled_at, rejected_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var side, orderType, status string
	var brokerOrderID *string
	var price *decimal.Decimal
	if err := row.Scan(
		&o.ID, &o.StrategyUniverseID, &o.SymbolID, &side, &orderType, &o.Quantity,
		&price, &status, &brokerOrderID, &o.CreatedAt, &o.FilledAt, &o.RejectedAt,
	); err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.OrderSide(side)
	o.Type = domain.EntryType(orderType)
	o.Status = domain.OrderStatus(status)
	if brokerOrderID != nil {
		o.BrokerOrderID = *brokerOrderID
	}
	if price != nil {
		o.Price = *price
	}
	return o, nil
}

// Insert writes a risk-admitted order in NEW status.
func (s *OrderStore) Insert(ctx context.Context, o domain.Order) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO live_orders (strategy_universe_id, symbol_id, side, order_type, quantity, price, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), $7)
		RETURNING id
	`, o.StrategyUniverseID, o.SymbolID, string(o.Side), string(o.Type), o.Quantity, o.Price, string(domain.OrderStatusNew)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert order: %w", err)
	}
	return id, nil
}

// ListNew returns up to limit NEW orders, oldest first, for the broker
// adapter to execute.
func (s *OrderStore) ListNew(ctx context.Context, limit int) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM live_orders
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, string(domain.OrderStatusNew), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list new orders: %w", err)
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// ListOpenByStrategyUniverse returns every NEW order for one strategy
// universe.
func (s *OrderStore) ListOpenByStrategyUniverse(ctx context.Context, strategyUniverseID int64) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM live_orders
		WHERE strategy_universe_id = $1 AND status = $2
		ORDER BY created_at
	`, strategyUniverseID, string(domain.OrderStatusNew))
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders for strategy universe %d: %w", strategyUniverseID, err)
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus transitions an order to a terminal status, stamping
// filled_at/rejected_at and recording the broker order id.
func (s *OrderStore) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, brokerOrderID string) error {
	var query string
	switch status {
	case domain.OrderStatusFilled:
		query = `UPDATE live_orders SET status = $2, broker_order_id = NULLIF($3, ''), filled_at = now() WHERE id = $1`
	case domain.OrderStatusRejected:
		query = `UPDATE live_orders SET status = $2, broker_order_id = NULLIF($3, ''), rejected_at = now() WHERE id = $1`
	default:
		query = `UPDATE live_orders SET status = $2, broker_order_id = NULLIF($3, '') WHERE id = $1`
	}
	tag, err := s.pool.Exec(ctx, query, id, string(status), brokerOrderID)
	if err != nil {
		return fmt.Errorf("postgres: update order %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountOpenTotal counts every NEW order across all strategy universes.
func (s *OrderStore) CountOpenTotal(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM live_orders WHERE status = $1`, string(domain.OrderStatusNew)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count open orders: %w", err)
	}
	return n, nil
}

// CountOpenByStrategyUniverse counts NEW orders for one strategy universe.
func (s *OrderStore) CountOpenByStrategyUniverse(ctx context.Context, strategyUniverseID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM live_orders WHERE strategy_universe_id = $1 AND status = $2
	`, strategyUniverseID, string(domain.OrderStatusNew)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count open orders for strategy universe %d: %w", strategyUniverseID, err)
	}
	return n, nil
}

// ListTerminalBefore returns up to limit FILLED/REJECTED orders created
// strictly before `before`, used by the archiver. NEW orders are never
// selected: they are still live work, not history.
func (s *OrderStore) ListTerminalBefore(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM live_orders
		WHERE created_at < $1 AND status IN ($2, $3)
		ORDER BY created_at
		LIMIT $4
	`, before, string(domain.OrderStatusFilled), string(domain.OrderStatusRejected), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders before %s: %w", before, err)
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// DeleteTerminalBefore removes every FILLED/REJECTED order created strictly
// before `before`, once the matching rows are durably exported.
func (s *OrderStore) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM live_orders WHERE created_at < $1 AND status IN ($2, $3)
	`, before, string(domain.OrderStatusFilled), string(domain.OrderStatusRejected))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete terminal orders before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
