package risk

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

type fakeSignalStore struct {
	signals   []domain.Signal
	processed map[int64]bool
}

func (f *fakeSignalStore) Insert(ctx context.Context, s domain.Signal) (int64, error) { return 0, nil }
func (f *fakeSignalStore) ListUnprocessed(ctx context.Context, limit int) ([]domain.Signal, error) {
	var out []domain.Signal
	for _, s := range f.signals {
		if !f.processed[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeSignalStore) MarkProcessed(ctx context.Context, id int64) error {
	if f.processed == nil {
		f.processed = make(map[int64]bool)
	}
	f.processed[id] = true
	return nil
}

type fakeOrderStore struct {
	inserted []domain.Order
}

func (f *fakeOrderStore) Insert(ctx context.Context, o domain.Order) (int64, error) {
	f.inserted = append(f.inserted, o)
	return int64(len(f.inserted)), nil
}
func (f *fakeOrderStore) ListNew(ctx context.Context, limit int) ([]domain.Order, error) { return nil, nil }
func (f *fakeOrderStore) ListOpenByStrategyUniverse(ctx context.Context, id int64) ([]domain.Order, error) {
	return nil, nil
}
func (f *fakeOrderStore) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, brokerOrderID string) error {
	return nil
}
func (f *fakeOrderStore) CountOpenTotal(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeOrderStore) CountOpenByStrategyUniverse(ctx context.Context, id int64) (int, error) {
	return 0, nil
}
func (f *fakeOrderStore) ListTerminalBefore(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	return nil, nil
}
func (f *fakeOrderStore) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// fakePositions backs domain.PositionStore. openTotal/openByStrategy drive
// the admission-control counts independently of byStrategy, matching that
// live_positions (not live_orders) is the count's source of truth.
type fakePositions struct {
	byStrategy     map[int64]domain.Position
	openTotal      int
	openByStrategy map[int64]int
}

func (f *fakePositions) GetForUpdate(ctx context.Context, strategyUniverseID int64) (*domain.Position, error) {
	p, ok := f.byStrategy[strategyUniverseID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
func (f *fakePositions) Upsert(ctx context.Context, p domain.Position) error { return nil }
func (f *fakePositions) MarkGapMode(ctx context.Context, ids []int64, gapMode bool) error { return nil }
func (f *fakePositions) ListOpen(ctx context.Context) ([]domain.Position, error)          { return nil, nil }
func (f *fakePositions) CountOpen(ctx context.Context) (int, error)                       { return f.openTotal, nil }
func (f *fakePositions) CountOpenByStrategyUniverse(ctx context.Context, id int64) (int, error) {
	return f.openByStrategy[id], nil
}

type fakeAccounts struct{ state *domain.AccountState }

func (f *fakeAccounts) Get(ctx context.Context) (*domain.AccountState, error) { return f.state, nil }
func (f *fakeAccounts) Save(ctx context.Context, a domain.AccountState) error { f.state = &a; return nil }

type fakeControl struct{ state *domain.TradingControl }

func (f *fakeControl) Get(ctx context.Context) (*domain.TradingControl, error) { return f.state, nil }
func (f *fakeControl) Save(ctx context.Context, c domain.TradingControl) error { f.state = &c; return nil }

type fakeSymbols struct{ byID map[int64]domain.Symbol }

func (f *fakeSymbols) GetByID(ctx context.Context, id int64) (*domain.Symbol, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}
func (f *fakeSymbols) GetByTicker(ctx context.Context, ticker string) (*domain.Symbol, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeSymbols) List(ctx context.Context) ([]domain.Symbol, error) { return nil, nil }

type fakeUniverse struct{ byID map[int64]domain.StrategyUniverse }

func (f *fakeUniverse) GetByID(ctx context.Context, id int64) (*domain.StrategyUniverse, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}
func (f *fakeUniverse) ListEnabled(ctx context.Context) ([]domain.StrategyUniverse, error) { return nil, nil }
func (f *fakeUniverse) ListBySymbolTimeframe(ctx context.Context, symbolID int64, tf domain.Timeframe) ([]domain.StrategyUniverse, error) {
	return nil, nil
}

type fakeEngineStatus struct{}

func (f *fakeEngineStatus) Heartbeat(ctx context.Context, serviceName, detail string) error {
	return nil
}
func (f *fakeEngineStatus) Get(ctx context.Context, serviceName string) (*domain.ServiceStatus, error) {
	return nil, nil
}

type fakeEngineErrors struct{ entries []domain.ErrorLog }

func (f *fakeEngineErrors) Insert(ctx context.Context, e domain.ErrorLog) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeEngineErrors) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ErrorLog, error) {
	return nil, nil
}
func (f *fakeEngineErrors) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestEngine(t *testing.T) (*Engine, *fakeSignalStore, *fakeOrderStore, *fakePositions, *fakeAccounts, *fakeControl, *fakeSymbols, *fakeUniverse, *fakeEngineErrors) {
	t.Helper()
	sig := &fakeSignalStore{}
	ord := &fakeOrderStore{}
	pos := &fakePositions{byStrategy: map[int64]domain.Position{}, openByStrategy: map[int64]int{}}
	acc := &fakeAccounts{state: &domain.AccountState{Equity: dec("100000"), FreeCash: dec("100000")}}
	ctrl := &fakeControl{state: &domain.TradingControl{AllowTrading: true, AllowNewPositions: true}}
	syms := &fakeSymbols{byID: map[int64]domain.Symbol{1: {ID: 1, Ticker: "ACME", LotSize: 1}}}
	uni := &fakeUniverse{byID: map[int64]domain.StrategyUniverse{
		1: {ID: 1, SymbolID: 1, Timeframe: domain.Timeframe1h, RiskPerTrade: dec("0.02"), MaxDrawdownFraction: dec("0.2")},
	}}
	errs := &fakeEngineErrors{}
	status := &fakeEngineStatus{}

	e := New(sig, ord, pos, acc, ctrl, syms, uni, status, errs, testLogger(), Config{BatchSize: 100})
	return e, sig, ord, pos, acc, ctrl, syms, uni, errs
}

func openSignal(id int64) domain.Signal {
	return domain.Signal{
		ID:                 id,
		StrategyUniverseID: 1,
		SymbolID:           1,
		Payload: domain.SignalPayload{
			Type:       domain.SignalTypeOpen,
			Direction:  domain.DirectionLong,
			EntryType:  domain.EntryTypeMarket,
			EntryPrice: dec("100"),
			StopLoss:   dec("95"),
			SizeMode:   domain.SizeModeRiskFraction,
			SizeValue:  dec("1.0"),
		},
	}
}

func TestEngine_AdmitsValidOpenSignal(t *testing.T) {
	e, sig, ord, _, _, _, _, _, _ := newTestEngine(t)
	s := openSignal(1)

	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Len(t, ord.inserted, 1)
	require.Equal(t, domain.OrderSideBuy, ord.inserted[0].Side)
}

func TestEngine_RejectsWhenTradingDisabled(t *testing.T) {
	e, sig, ord, _, _, ctrl, _, _, errs := newTestEngine(t)
	ctrl.state.AllowTrading = false
	s := openSignal(1)

	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Equal(t, "trading_disabled_by_control", errs.entries[0].Message)
}

func TestEngine_ManualCloseBypassesTradingDisabled(t *testing.T) {
	e, sig, ord, pos, _, ctrl, _, _, _ := newTestEngine(t)
	ctrl.state.AllowTrading = false
	pos.byStrategy[1] = domain.Position{Direction: domain.DirectionLong, Quantity: dec("10")}

	s := domain.Signal{ID: 1, StrategyUniverseID: 1, SymbolID: 1, Payload: domain.SignalPayload{Type: domain.SignalTypeManualClose}}
	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Len(t, ord.inserted, 1)
	require.Equal(t, domain.OrderSideSell, ord.inserted[0].Side)
}

func TestEngine_RejectsNewPositionsWhenDisabled(t *testing.T) {
	e, sig, ord, _, _, ctrl, _, _, errs := newTestEngine(t)
	ctrl.state.AllowNewPositions = false
	s := openSignal(1)

	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Equal(t, "new_positions_disabled_by_control", errs.entries[0].Message)
}

func TestEngine_RejectsOnSizingFailure(t *testing.T) {
	e, sig, ord, _, _, _, _, _, errs := newTestEngine(t)
	s := openSignal(1)
	s.Payload.StopLoss = dec("0") // stop_loss_required

	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Contains(t, errs.entries[0].Message, "stop_loss_required")
}

func TestEngine_CloseWithoutPositionLogsInfo(t *testing.T) {
	e, sig, ord, _, _, _, _, _, errs := newTestEngine(t)
	s := domain.Signal{ID: 1, StrategyUniverseID: 1, SymbolID: 1, Payload: domain.SignalPayload{Type: domain.SignalTypeClose}}

	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Equal(t, "close_without_position", errs.entries[0].Message)
}

func TestEngine_RejectsWhenMaxTotalPositionsReached(t *testing.T) {
	e, sig, ord, pos, _, _, _, _, errs := newTestEngine(t)
	uniByID := map[int64]domain.StrategyUniverse{
		1: {ID: 1, SymbolID: 1, Timeframe: domain.Timeframe1h, RiskPerTrade: dec("0.02"), MaxDrawdownFraction: dec("0.2"), MaxTotalPositions: 1},
	}
	e = New(sig, ord, pos, e.accounts, e.control, e.symbols, &fakeUniverse{byID: uniByID}, e.status, errs, testLogger(), Config{BatchSize: 100})
	pos.openTotal = 1 // already at the limit before this signal is admitted

	s := openSignal(1)
	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Equal(t, "max_total_positions_reached", errs.entries[0].Message)
}

func TestEngine_RejectsWhenMaxPositionsPerStrategyReached(t *testing.T) {
	e, sig, ord, pos, _, _, _, _, errs := newTestEngine(t)
	uniByID := map[int64]domain.StrategyUniverse{
		1: {ID: 1, SymbolID: 1, Timeframe: domain.Timeframe1h, RiskPerTrade: dec("0.02"), MaxDrawdownFraction: dec("0.2"), MaxPositionsPerStrategy: 1},
	}
	e = New(sig, ord, pos, e.accounts, e.control, e.symbols, &fakeUniverse{byID: uniByID}, e.status, errs, testLogger(), Config{BatchSize: 100})
	pos.openByStrategy[1] = 1 // already at the per-strategy limit

	s := openSignal(1)
	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Equal(t, "max_positions_per_strategy_reached", errs.entries[0].Message)
}

func TestEngine_RejectsUnsupportedOrderType(t *testing.T) {
	e, sig, ord, _, _, _, _, _, errs := newTestEngine(t)
	s := openSignal(1)
	s.Payload.EntryType = "TRAILING_STOP"

	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Equal(t, "unsupported_order_type", errs.entries[0].Message)
}

func TestEngine_UnknownSignalTypeMarksProcessed(t *testing.T) {
	e, sig, ord, _, _, _, _, _, errs := newTestEngine(t)
	s := domain.Signal{ID: 1, StrategyUniverseID: 1, SymbolID: 1, Payload: domain.SignalPayload{Type: "BOGUS"}}

	err := e.processSignal(context.Background(), s)
	require.NoError(t, err)
	require.True(t, sig.processed[1])
	require.Empty(t, ord.inserted)
	require.Equal(t, "unknown_signal_type", errs.entries[0].Message)
}
