package domain

import (
	"context"
	"time"
)

// ListOpts bounds and offsets a list query, matching the teacher's
// postgres store's pagination convention.
type ListOpts struct {
	Limit  int
	Offset int
}

// SymbolStore resolves symbols by id or ticker.
type SymbolStore interface {
	GetByID(ctx context.Context, id int64) (*Symbol, error)
	GetByTicker(ctx context.Context, ticker string) (*Symbol, error)
	List(ctx context.Context) ([]Symbol, error)
}

// CandleStore writes closed 1-minute bars and closed aggregated bars, and
// reads them back for watermarking and strategy history windows.
type CandleStore interface {
	InsertCandle1m(ctx context.Context, c Candle1m) error
	ListCandle1mAfter(ctx context.Context, ts time.Time, limit int) ([]Candle1m, error)
	LatestCandle1mTimestamp(ctx context.Context) (*time.Time, error)
	LatestCandle1mClose(ctx context.Context, symbolID int64) (*Candle1m, error)

	InsertAggregated(ctx context.Context, tf Timeframe, c AggregatedCandle) error
	LastClosedClose(ctx context.Context, tf Timeframe, symbolID int64) (*AggregatedCandle, error)
	History(ctx context.Context, tf Timeframe, symbolID int64, before time.Time, limit int) ([]AggregatedCandle, error)
	ListAggregatedAfter(ctx context.Context, tf Timeframe, after time.Time, limit int) ([]AggregatedCandle, error)
}

// StrategyCatalogStore reads the registered strategy implementations.
type StrategyCatalogStore interface {
	GetByID(ctx context.Context, id int64) (*StrategyCatalogEntry, error)
	List(ctx context.Context) ([]StrategyCatalogEntry, error)
}

// StrategyUniverseStore reads strategy universe assignments (symbol +
// timeframe + strategy + risk params).
type StrategyUniverseStore interface {
	GetByID(ctx context.Context, id int64) (*StrategyUniverse, error)
	ListEnabled(ctx context.Context) ([]StrategyUniverse, error)
	ListBySymbolTimeframe(ctx context.Context, symbolID int64, tf Timeframe) ([]StrategyUniverse, error)
}

// SignalStore writes strategy decisions and serves them to the risk engine
// in arrival order, exactly once each.
type SignalStore interface {
	Insert(ctx context.Context, s Signal) (int64, error)
	ListUnprocessed(ctx context.Context, limit int) ([]Signal, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// OrderStore writes risk-admitted orders and serves new ones to the broker
// adapter.
type OrderStore interface {
	Insert(ctx context.Context, o Order) (int64, error)
	ListNew(ctx context.Context, limit int) ([]Order, error)
	ListOpenByStrategyUniverse(ctx context.Context, strategyUniverseID int64) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus, brokerOrderID string) error
	CountOpenTotal(ctx context.Context) (int, error)
	CountOpenByStrategyUniverse(ctx context.Context, strategyUniverseID int64) (int, error)
	ListTerminalBefore(ctx context.Context, before time.Time, limit int) ([]Order, error)
	DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error)
}

// TradeStore writes executed fills.
type TradeStore interface {
	Insert(ctx context.Context, t Trade) error
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PositionStore reads and mutates the one-row-per-strategy-universe
// position; Upsert must be called while the row (if any) is locked by the
// caller's transaction.
type PositionStore interface {
	GetForUpdate(ctx context.Context, strategyUniverseID int64) (*Position, error)
	Upsert(ctx context.Context, p Position) error
	MarkGapMode(ctx context.Context, ids []int64, gapMode bool) error
	ListOpen(ctx context.Context) ([]Position, error)
	CountOpen(ctx context.Context) (int, error)
	CountOpenByStrategyUniverse(ctx context.Context, strategyUniverseID int64) (int, error)
}

// AccountStore reads and writes the single account_state row.
type AccountStore interface {
	Get(ctx context.Context) (*AccountState, error)
	Save(ctx context.Context, a AccountState) error
}

// ControlStore reads and writes the single trading_control row.
type ControlStore interface {
	Get(ctx context.Context) (*TradingControl, error)
	Save(ctx context.Context, c TradingControl) error
}

// ErrorStore writes diagnostic and rejection entries.
type ErrorStore interface {
	Insert(ctx context.Context, e ErrorLog) error
	ListBefore(ctx context.Context, before time.Time, limit int) ([]ErrorLog, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// StatusStore writes and reads per-daemon heartbeats.
type StatusStore interface {
	Heartbeat(ctx context.Context, serviceName string, detail string) error
	Get(ctx context.Context, serviceName string) (*ServiceStatus, error)
}

// WatermarkStore reads and writes the aggregator's persisted progress.
type WatermarkStore interface {
	LoadDatafeedState(ctx context.Context) (*DatafeedState, error)
	SaveLast1mTimestamp(ctx context.Context, ts time.Time) error

	LoadBarStates(ctx context.Context, serviceName string) ([]BarState, error)
	SaveBarState(ctx context.Context, b BarState) error
	DeleteBarState(ctx context.Context, serviceName string, tf Timeframe) error
}

// LotStore serves effective-lot-size lookups; no daemon calls it directly,
// it exists for completeness against the data model.
type LotStore interface {
	EffectiveLotSize(ctx context.Context, symbolID int64, asOf time.Time) (int64, error)
}
