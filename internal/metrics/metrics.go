// Package metrics exposes the Prometheus collectors shared by every daemon,
// grounded on the pack's direct client_golang usage (custom registry style
// per poorman-SynapseStrike/metrics, promhttp-served per chidi150c-coinbase).
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the custom registry every collector below is registered
// against, so /metrics never mixes in Go-runtime defaults the way the
// global registry would.
var Registry = prometheus.NewRegistry()

var (
	// SignalsEmitted counts signals the strategy runner persisted, by
	// strategy catalog key.
	SignalsEmitted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockpg",
			Subsystem: "strategy_runner",
			Name:      "signals_emitted_total",
			Help:      "Signals persisted to live_signals, by strategy.",
		},
		[]string{"strategy"},
	)

	// OrdersByOutcome counts orders reaching a terminal state, by outcome.
	OrdersByOutcome = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockpg",
			Subsystem: "broker",
			Name:      "orders_total",
			Help:      "Orders reaching a terminal state, by outcome (filled|rejected).",
		},
		[]string{"outcome"},
	)

	// SignalsRejected counts signals the risk engine rejected, by reason.
	SignalsRejected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockpg",
			Subsystem: "risk",
			Name:      "signals_rejected_total",
			Help:      "Signals rejected by the execution/risk engine, by reason.",
		},
		[]string{"reason"},
	)

	// CandleLagSeconds reports how stale the most recent 1-minute candle is.
	CandleLagSeconds = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stockpg",
			Subsystem: "health",
			Name:      "candle_lag_seconds",
			Help:      "Seconds between now and the latest 1-minute candle timestamp.",
		},
	)

	// TradingControlState reports the current trading_control flags as a
	// 0/1 gauge per flag, so a single dashboard panel covers both.
	TradingControlState = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stockpg",
			Subsystem: "health",
			Name:      "trading_control_state",
			Help:      "Current trading_control flag value (1=allowed, 0=blocked).",
		},
		[]string{"flag"},
	)

	// ServiceHeartbeatAgeSeconds reports each watched service's heartbeat
	// age as last observed by the health monitor.
	ServiceHeartbeatAgeSeconds = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stockpg",
			Subsystem: "health",
			Name:      "service_heartbeat_age_seconds",
			Help:      "Seconds since each watched service's last heartbeat.",
		},
		[]string{"service"},
	)
)

// Server serves the /metrics scrape endpoint on its own listener, matching
// the teacher's pattern of a small dedicated mux alongside the daemon loops.
type Server struct {
	httpServer *http.Server
}

// NewServer builds (but does not start) a metrics HTTP server on the given
// port.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
