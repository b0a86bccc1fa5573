package health

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

type fakeStatus struct {
	byService map[string]domain.ServiceStatus
}

func (f *fakeStatus) Heartbeat(ctx context.Context, serviceName, detail string) error {
	if f.byService == nil {
		f.byService = map[string]domain.ServiceStatus{}
	}
	f.byService[serviceName] = domain.ServiceStatus{ServiceName: serviceName, LastHeartbeat: time.Now().UTC(), Detail: detail}
	return nil
}

func (f *fakeStatus) Get(ctx context.Context, serviceName string) (*domain.ServiceStatus, error) {
	st, ok := f.byService[serviceName]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

type fakeControl struct{ state *domain.TradingControl }

func (f *fakeControl) Get(ctx context.Context) (*domain.TradingControl, error) { return f.state, nil }
func (f *fakeControl) Save(ctx context.Context, c domain.TradingControl) error { f.state = &c; return nil }

type fakeCandles struct{ latest *time.Time }

func (f *fakeCandles) InsertCandle1m(ctx context.Context, c domain.Candle1m) error { return nil }
func (f *fakeCandles) ListCandle1mAfter(ctx context.Context, ts time.Time, limit int) ([]domain.Candle1m, error) {
	return nil, nil
}
func (f *fakeCandles) LatestCandle1mTimestamp(ctx context.Context) (*time.Time, error) {
	return f.latest, nil
}
func (f *fakeCandles) LatestCandle1mClose(ctx context.Context, symbolID int64) (*domain.Candle1m, error) {
	return nil, nil
}
func (f *fakeCandles) InsertAggregated(ctx context.Context, tf domain.Timeframe, c domain.AggregatedCandle) error {
	return nil
}
func (f *fakeCandles) LastClosedClose(ctx context.Context, tf domain.Timeframe, symbolID int64) (*domain.AggregatedCandle, error) {
	return nil, nil
}
func (f *fakeCandles) History(ctx context.Context, tf domain.Timeframe, symbolID int64, before time.Time, limit int) ([]domain.AggregatedCandle, error) {
	return nil, nil
}
func (f *fakeCandles) ListAggregatedAfter(ctx context.Context, tf domain.Timeframe, after time.Time, limit int) ([]domain.AggregatedCandle, error) {
	return nil, nil
}

type fakeErrors struct{ entries []domain.ErrorLog }

func (f *fakeErrors) Insert(ctx context.Context, e domain.ErrorLog) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeErrors) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ErrorLog, error) {
	return nil, nil
}
func (f *fakeErrors) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCheckHeartbeatsMissingServiceForcesStop(t *testing.T) {
	status := &fakeStatus{}
	control := &fakeControl{state: &domain.TradingControl{AllowTrading: true, AllowNewPositions: true}}
	errs := &fakeErrors{}
	m := New(status, control, &fakeCandles{}, errs, testLogger(), Config{
		Services: DefaultServices(60 * time.Second),
	})

	require.NoError(t, m.checkHeartbeats(context.Background(), time.Now().UTC()))

	require.False(t, control.state.AllowTrading)
	require.False(t, control.state.AllowNewPositions)
	require.NotEmpty(t, errs.entries)
}

func TestCheckHeartbeatsStaleStopTradingServiceForcesStop(t *testing.T) {
	status := &fakeStatus{byService: map[string]domain.ServiceStatus{
		"data_feed":        {ServiceName: "data_feed", LastHeartbeat: time.Now().UTC()},
		"strategy_runner":  {ServiceName: "strategy_runner", LastHeartbeat: time.Now().UTC()},
		"execution_engine": {ServiceName: "execution_engine", LastHeartbeat: time.Now().UTC()},
		"fake_broker":      {ServiceName: "fake_broker", LastHeartbeat: time.Now().UTC().Add(-2 * time.Minute)},
	}}
	control := &fakeControl{state: &domain.TradingControl{AllowTrading: true, AllowNewPositions: true}}
	m := New(status, control, &fakeCandles{}, &fakeErrors{}, testLogger(), Config{
		Services: DefaultServices(60 * time.Second),
	})

	require.NoError(t, m.checkHeartbeats(context.Background(), time.Now().UTC()))

	require.False(t, control.state.AllowTrading)
	require.False(t, control.state.AllowNewPositions)
}

func TestCheckHeartbeatsAllFreshNoChange(t *testing.T) {
	now := time.Now().UTC()
	status := &fakeStatus{byService: map[string]domain.ServiceStatus{
		"data_feed":        {ServiceName: "data_feed", LastHeartbeat: now},
		"strategy_runner":  {ServiceName: "strategy_runner", LastHeartbeat: now},
		"execution_engine": {ServiceName: "execution_engine", LastHeartbeat: now},
		"fake_broker":      {ServiceName: "fake_broker", LastHeartbeat: now},
	}}
	control := &fakeControl{state: &domain.TradingControl{AllowTrading: true, AllowNewPositions: true}}
	m := New(status, control, &fakeCandles{}, &fakeErrors{}, testLogger(), Config{
		Services: DefaultServices(60 * time.Second),
	})

	require.NoError(t, m.checkHeartbeats(context.Background(), now))

	require.True(t, control.state.AllowTrading)
	require.True(t, control.state.AllowNewPositions)
}

func TestCheckDataLagEntersSafeMode(t *testing.T) {
	old := time.Now().UTC().Add(-5 * time.Minute)
	control := &fakeControl{state: &domain.TradingControl{AllowTrading: true, AllowNewPositions: true}}
	m := New(&fakeStatus{}, control, &fakeCandles{latest: &old}, &fakeErrors{}, testLogger(), Config{
		CandleLagThreshold: 120 * time.Second,
	})

	require.NoError(t, m.checkDataLag(context.Background(), time.Now().UTC()))

	require.True(t, control.state.AllowTrading)
	require.False(t, control.state.AllowNewPositions)
}

func TestCheckDataLagAutoRecovers(t *testing.T) {
	fresh := time.Now().UTC()
	control := &fakeControl{state: &domain.TradingControl{
		AllowTrading:      true,
		AllowNewPositions: false,
		Comment:           "safe-mode: minute data lag exceeds threshold",
	}}
	m := New(&fakeStatus{}, control, &fakeCandles{latest: &fresh}, &fakeErrors{}, testLogger(), Config{
		CandleLagThreshold: 120 * time.Second,
	})

	require.NoError(t, m.checkDataLag(context.Background(), fresh))

	require.True(t, control.state.AllowNewPositions)
}

func TestCheckDataLagDoesNotOverrideManualStop(t *testing.T) {
	fresh := time.Now().UTC()
	control := &fakeControl{state: &domain.TradingControl{
		AllowTrading:      false,
		AllowNewPositions: false,
		Comment:           "manual stop by operator",
	}}
	m := New(&fakeStatus{}, control, &fakeCandles{latest: &fresh}, &fakeErrors{}, testLogger(), Config{
		CandleLagThreshold: 120 * time.Second,
	})

	require.NoError(t, m.checkDataLag(context.Background(), fresh))

	require.False(t, control.state.AllowNewPositions)
	require.Equal(t, "manual stop by operator", control.state.Comment)
}
