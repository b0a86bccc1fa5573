package aggregator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

type fakeCandleStore struct {
	minutes    []domain.Candle1m
	aggregated map[domain.Timeframe][]domain.AggregatedCandle
}

func newFakeCandleStore() *fakeCandleStore {
	return &fakeCandleStore{aggregated: make(map[domain.Timeframe][]domain.AggregatedCandle)}
}

func (f *fakeCandleStore) InsertCandle1m(ctx context.Context, c domain.Candle1m) error {
	f.minutes = append(f.minutes, c)
	return nil
}

func (f *fakeCandleStore) ListCandle1mAfter(ctx context.Context, ts time.Time, limit int) ([]domain.Candle1m, error) {
	var out []domain.Candle1m
	for _, c := range f.minutes {
		if c.Timestamp.After(ts) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCandleStore) LatestCandle1mTimestamp(ctx context.Context) (*time.Time, error) {
	if len(f.minutes) == 0 {
		return nil, nil
	}
	ts := f.minutes[0].Timestamp
	return &ts, nil
}

func (f *fakeCandleStore) InsertAggregated(ctx context.Context, tf domain.Timeframe, c domain.AggregatedCandle) error {
	f.aggregated[tf] = append(f.aggregated[tf], c)
	return nil
}

func (f *fakeCandleStore) LastClosedClose(ctx context.Context, tf domain.Timeframe, symbolID int64) (*domain.AggregatedCandle, error) {
	bars := f.aggregated[tf]
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].SymbolID == symbolID {
			return &bars[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCandleStore) History(ctx context.Context, tf domain.Timeframe, symbolID int64, before time.Time, limit int) ([]domain.AggregatedCandle, error) {
	return nil, nil
}

func (f *fakeCandleStore) LatestCandle1mClose(ctx context.Context, symbolID int64) (*domain.Candle1m, error) {
	for i := len(f.minutes) - 1; i >= 0; i-- {
		if f.minutes[i].SymbolID == symbolID {
			return &f.minutes[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCandleStore) ListAggregatedAfter(ctx context.Context, tf domain.Timeframe, after time.Time, limit int) ([]domain.AggregatedCandle, error) {
	var out []domain.AggregatedCandle
	for _, c := range f.aggregated[tf] {
		if after.IsZero() || c.Timestamp.After(after) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePositionStore struct {
	positions map[int64]domain.Position
}

func (f *fakePositionStore) GetForUpdate(ctx context.Context, id int64) (*domain.Position, error) {
	return nil, nil
}
func (f *fakePositionStore) Upsert(ctx context.Context, p domain.Position) error { return nil }
func (f *fakePositionStore) MarkGapMode(ctx context.Context, ids []int64, gapMode bool) error {
	for _, id := range ids {
		p := f.positions[id]
		p.GapMode = gapMode
		f.positions[id] = p
	}
	return nil
}
func (f *fakePositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSymbolStore struct{ symbols []domain.Symbol }

func (f *fakeSymbolStore) GetByID(ctx context.Context, id int64) (*domain.Symbol, error) {
	for _, s := range f.symbols {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeSymbolStore) GetByTicker(ctx context.Context, ticker string) (*domain.Symbol, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeSymbolStore) List(ctx context.Context) ([]domain.Symbol, error) { return f.symbols, nil }

type fakeWatermarkStore struct {
	state *domain.DatafeedState
}

func (f *fakeWatermarkStore) LoadDatafeedState(ctx context.Context) (*domain.DatafeedState, error) {
	return f.state, nil
}
func (f *fakeWatermarkStore) SaveLast1mTimestamp(ctx context.Context, ts time.Time) error {
	f.state = &domain.DatafeedState{Last1mTimestamp: ts}
	return nil
}
func (f *fakeWatermarkStore) LoadBarStates(ctx context.Context, serviceName string) ([]domain.BarState, error) {
	return nil, nil
}
func (f *fakeWatermarkStore) SaveBarState(ctx context.Context, b domain.BarState) error { return nil }
func (f *fakeWatermarkStore) DeleteBarState(ctx context.Context, serviceName string, tf domain.Timeframe) error {
	return nil
}

type fakeStatusStore struct{}

func (f *fakeStatusStore) Heartbeat(ctx context.Context, serviceName, detail string) error {
	return nil
}
func (f *fakeStatusStore) Get(ctx context.Context, serviceName string) (*domain.ServiceStatus, error) {
	return nil, nil
}

type fakeErrorStore struct{ entries []domain.ErrorLog }

func (f *fakeErrorStore) Insert(ctx context.Context, e domain.ErrorLog) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeErrorStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ErrorLog, error) {
	return nil, nil
}
func (f *fakeErrorStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAggregator_ClosesBarAndDetectsGap(t *testing.T) {
	candles := newFakeCandleStore()
	positions := &fakePositionStore{positions: map[int64]domain.Position{
		1: {ID: 1, SymbolID: 42, Direction: domain.DirectionLong, Quantity: d("10")},
	}}
	symbols := &fakeSymbolStore{symbols: []domain.Symbol{{ID: 42, Ticker: "ACME"}}}
	watermarks := &fakeWatermarkStore{}
	status := &fakeStatusStore{}
	errs := &fakeErrorStore{}

	a := New(candles, positions, symbols, watermarks, status, errs, silentLogger(), Config{
		GapThreshold:    d("0.20"),
		PollInterval:    time.Millisecond,
		ErrorRetryDelay: time.Millisecond,
	})

	// Seed the previously closed 5m bar so the next bar can be compared against it.
	a.lastClosedClose[domain.Timeframe5m][42] = d("100")

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	bar := &openBar{
		symbolID: 42,
		startTS:  base,
		endTS:    base.Add(5 * time.Minute),
		open:     d("100"),
		high:     d("105"),
		low:      d("95"),
		close:    d("70"), // 30% down from 100: exceeds the 20% threshold
		volume:   d("1000"),
	}

	err := a.closeBar(context.Background(), domain.Timeframe5m, bar)
	require.NoError(t, err)

	require.Len(t, candles.aggregated[domain.Timeframe5m], 1)
	got := candles.aggregated[domain.Timeframe5m][0]
	require.True(t, got.IsGap)
	require.Equal(t, "DOWN", got.GapDir)

	require.True(t, positions.positions[1].GapMode, "LONG position should flip gap_mode on a DOWN gap")
}

func TestAggregator_NoGapBelowThreshold(t *testing.T) {
	candles := newFakeCandleStore()
	positions := &fakePositionStore{positions: map[int64]domain.Position{}}
	symbols := &fakeSymbolStore{}
	watermarks := &fakeWatermarkStore{}
	status := &fakeStatusStore{}
	errs := &fakeErrorStore{}

	a := New(candles, positions, symbols, watermarks, status, errs, silentLogger(), Config{
		GapThreshold: d("0.20"),
	})
	a.lastClosedClose[domain.Timeframe1h][42] = d("100")

	bar := &openBar{symbolID: 42, close: d("110")} // 10% move, below threshold
	err := a.closeBar(context.Background(), domain.Timeframe1h, bar)
	require.NoError(t, err)

	got := candles.aggregated[domain.Timeframe1h][0]
	require.False(t, got.IsGap)
	require.Empty(t, got.GapDir)
}

func TestAggregator_ProcessMinuteBar_OpensAndClosesBuckets(t *testing.T) {
	candles := newFakeCandleStore()
	positions := &fakePositionStore{positions: map[int64]domain.Position{}}
	symbols := &fakeSymbolStore{}
	watermarks := &fakeWatermarkStore{}
	status := &fakeStatusStore{}
	errs := &fakeErrorStore{}

	a := New(candles, positions, symbols, watermarks, status, errs, silentLogger(), Config{
		GapThreshold: d("0.20"),
	})

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// First minute opens every bucket.
	require.NoError(t, a.processMinuteBar(ctx, domain.Candle1m{
		SymbolID: 1, Timestamp: base, Open: d("10"), High: d("11"), Low: d("9"), Close: d("10.5"), Volume: d("1"),
	}))
	require.NotNil(t, a.currentBars[domain.Timeframe5m][1])
	require.Equal(t, d("10.5"), a.currentBars[domain.Timeframe5m][1].close)

	// Second minute within the same 5m bucket updates in place.
	require.NoError(t, a.processMinuteBar(ctx, domain.Candle1m{
		SymbolID: 1, Timestamp: base.Add(time.Minute), Open: d("10.5"), High: d("12"), Low: d("10"), Close: d("11"), Volume: d("2"),
	}))
	require.Equal(t, d("11"), a.currentBars[domain.Timeframe5m][1].close)
	require.Equal(t, d("12"), a.currentBars[domain.Timeframe5m][1].high)
	require.Equal(t, d("3"), a.currentBars[domain.Timeframe5m][1].volume)
	require.Empty(t, candles.aggregated[domain.Timeframe5m])

	// A minute landing in the next 5m bucket closes the first one.
	require.NoError(t, a.processMinuteBar(ctx, domain.Candle1m{
		SymbolID: 1, Timestamp: base.Add(5 * time.Minute), Open: d("11"), High: d("11"), Low: d("11"), Close: d("11"), Volume: d("1"),
	}))
	require.Len(t, candles.aggregated[domain.Timeframe5m], 1)
	require.Equal(t, d("11"), candles.aggregated[domain.Timeframe5m][0].Close)
}
