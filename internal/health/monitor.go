// Package health implements the health monitor daemon: it watches service
// heartbeats and minute-data lag and drives trading_control transitions,
// matching the teacher's pattern of a store-coordinated control loop rather
// than any in-process shared state.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
	"github.com/anatolysokolov293-max/stock-pg/internal/metrics"
)

const serviceName = "health_monitor"

func setBoolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}

// WatchedService is one daemon the monitor checks each tick.
type WatchedService struct {
	Name      string
	Threshold time.Duration
	// StopTrading marks services whose silence is itself unsafe to trade
	// through: per spec.md §4.5, losing the broker or the execution engine
	// means orders can no longer be placed or filled safely, so their
	// absence forces a full stop rather than merely logging.
	StopTrading bool
}

// Config holds the health monitor's tunables.
type Config struct {
	PollInterval       time.Duration
	CandleLagThreshold time.Duration
	Services           []WatchedService
}

// DefaultServices is the set of daemons the monitor watches by default,
// matching spec.md §4.5's {fake_broker, broker_adapter, execution_engine}
// stop-trading set collapsed onto this implementation's four daemon names
// (there is no separate broker_adapter process here; fake_broker plays both
// roles, see DESIGN.md).
func DefaultServices(heartbeatTimeout time.Duration) []WatchedService {
	return []WatchedService{
		{Name: "data_feed", Threshold: heartbeatTimeout},
		{Name: "strategy_runner", Threshold: heartbeatTimeout},
		{Name: "execution_engine", Threshold: heartbeatTimeout, StopTrading: true},
		{Name: "fake_broker", Threshold: heartbeatTimeout, StopTrading: true},
	}
}

// Monitor is the health monitor daemon.
type Monitor struct {
	status  domain.StatusStore
	control domain.ControlStore
	candles domain.CandleStore
	errors  domain.ErrorStore
	logger  *slog.Logger
	cfg     Config
}

// New constructs a Monitor.
func New(
	status domain.StatusStore,
	control domain.ControlStore,
	candles domain.CandleStore,
	errs domain.ErrorStore,
	logger *slog.Logger,
	cfg Config,
) *Monitor {
	return &Monitor{
		status:  status,
		control: control,
		candles: candles,
		errors:  errs,
		logger:  logger.With(slog.String("component", serviceName)),
		cfg:     cfg,
	}
}

// Run executes the health monitor's main loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("starting health monitor")

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return nil
		case <-ticker.C:
		}

		if err := m.tick(ctx); err != nil {
			// Health monitor failures never terminate the process, per
			// spec.md §4.5; log and keep ticking.
			m.logger.Error("health monitor tick failed", slog.String("error", err.Error()))
			m.logError(ctx, domain.SeverityError, "health_monitor_tick_failed", map[string]any{"error": err.Error()})
		}
	}
}

func (m *Monitor) tick(ctx context.Context) error {
	now := time.Now().UTC()

	if err := m.checkHeartbeats(ctx, now); err != nil {
		return fmt.Errorf("health: check heartbeats: %w", err)
	}
	if err := m.checkDataLag(ctx, now); err != nil {
		return fmt.Errorf("health: check data lag: %w", err)
	}
	if err := m.status.Heartbeat(ctx, serviceName, "ok"); err != nil {
		m.logger.Error("heartbeat failed", slog.String("error", err.Error()))
	}
	return nil
}

// checkHeartbeats inspects every watched service's last heartbeat and, for
// services in the stop-trading set, forces trading_control off when one has
// gone silent past its threshold.
func (m *Monitor) checkHeartbeats(ctx context.Context, now time.Time) error {
	var forceStop bool
	var stopReasons []string

	for _, svc := range m.cfg.Services {
		st, err := m.status.Get(ctx, svc.Name)
		if err != nil {
			return err
		}
		if st == nil {
			m.logError(ctx, domain.SeverityWarning, fmt.Sprintf("%s_status_missing", svc.Name), map[string]any{"service": svc.Name})
			if svc.StopTrading {
				forceStop = true
				stopReasons = append(stopReasons, fmt.Sprintf("%s status missing", svc.Name))
			}
			continue
		}

		age := now.Sub(st.LastHeartbeat.UTC())
		metrics.ServiceHeartbeatAgeSeconds.WithLabelValues(svc.Name).Set(age.Seconds())
		threshold := svc.Threshold
		if threshold <= 0 {
			threshold = 60 * time.Second
		}
		if age > threshold {
			m.logError(ctx, domain.SeverityCritical, fmt.Sprintf("%s_down", svc.Name), map[string]any{
				"service":       svc.Name,
				"last_heartbeat": st.LastHeartbeat,
				"age_seconds":   age.Seconds(),
			})
			if svc.StopTrading {
				forceStop = true
				stopReasons = append(stopReasons, fmt.Sprintf("%s down for %s", svc.Name, age.Round(time.Second)))
			}
		}
	}

	if !forceStop {
		return nil
	}

	control, err := m.control.Get(ctx)
	if err != nil {
		return err
	}
	if control != nil && !control.AllowTrading && !control.AllowNewPositions {
		return nil
	}

	comment := "auto stop-trading: " + joinReasons(stopReasons)
	return m.control.Save(ctx, domain.TradingControl{
		ID:                1,
		AllowTrading:      false,
		AllowNewPositions: false,
		Comment:           comment,
	})
}

// checkDataLag enters or exits safe-mode (allow_new_positions only) based on
// how stale the most recent 1-minute candle is.
func (m *Monitor) checkDataLag(ctx context.Context, now time.Time) error {
	latest, err := m.candles.LatestCandle1mTimestamp(ctx)
	if err != nil {
		return err
	}

	control, err := m.control.Get(ctx)
	if err != nil {
		return err
	}
	allowTrading, allowNewPositions := true, true
	comment := ""
	if control != nil {
		allowTrading, allowNewPositions = control.AllowTrading, control.AllowNewPositions
		comment = control.Comment
	}
	setBoolGauge(metrics.TradingControlState.WithLabelValues("allow_trading"), allowTrading)
	setBoolGauge(metrics.TradingControlState.WithLabelValues("allow_new_positions"), allowNewPositions)

	if latest == nil {
		return nil
	}

	lag := now.Sub(latest.UTC())
	metrics.CandleLagSeconds.Set(lag.Seconds())
	threshold := m.cfg.CandleLagThreshold
	if threshold <= 0 {
		threshold = 120 * time.Second
	}

	switch {
	case lag > threshold && allowNewPositions:
		m.logError(ctx, domain.SeverityWarning, "bar_too_old", map[string]any{"lag_seconds": lag.Seconds()})
		return m.control.Save(ctx, domain.TradingControl{
			ID:                1,
			AllowTrading:      allowTrading,
			AllowNewPositions: false,
			Comment:           "safe-mode: minute data lag exceeds threshold",
		})
	case lag <= threshold && !allowNewPositions && comment == "safe-mode: minute data lag exceeds threshold":
		// Only auto-recover the safe-mode this monitor itself entered; a
		// manual stop-trading or the heartbeat-driven stop above is left
		// alone until an operator or the heartbeat check clears it.
		return m.control.Save(ctx, domain.TradingControl{
			ID:                1,
			AllowTrading:      allowTrading,
			AllowNewPositions: true,
			Comment:           "auto-recovered: minute data lag back under threshold",
		})
	}
	return nil
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

func (m *Monitor) logError(ctx context.Context, severity domain.ErrorSeverity, message string, details map[string]any) {
	entry := domain.ErrorLog{
		Source:        "system",
		Severity:      severity,
		Message:       message,
		CorrelationID: domain.NewCorrelationID(),
		Details:       details,
	}
	if err := m.errors.Insert(ctx, entry); err != nil {
		m.logger.Error("failed to write error log", slog.String("error", err.Error()))
	}
}
