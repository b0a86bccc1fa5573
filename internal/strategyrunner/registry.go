package strategyrunner

import (
	"fmt"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
	"github.com/anatolysokolov293-max/stock-pg/internal/strategyrunner/strategies"
)

// Registry resolves a strategy_catalog row's live_class_key to the factory
// that builds it, replacing the original's "import by string module/class
// name" with a static, compiled-in lookup table.
type Registry struct {
	factories map[string]domain.StrategyFactory
}

// NewRegistry builds the registry of every built-in strategy.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]domain.StrategyFactory{
			"always_long":       strategies.NewAlwaysLong,
			"sma_trend1":        strategies.NewSMATrend1,
			"atr_trail_trend":   strategies.NewATRTrailTrend,
			"breakout_donchian": strategies.NewBreakoutDonchian,
			"ema_rsi_pullback":  strategies.NewEMARSIPullback,
			"boll_mfi_reversal": strategies.NewBollMFIReversal,
		},
	}
}

// Build constructs a fresh Strategy instance for the given catalog key and
// strategy_universe params.
func (r *Registry) Build(liveClassKey string, params map[string]any) (domain.Strategy, error) {
	factory, ok := r.factories[liveClassKey]
	if !ok {
		return nil, fmt.Errorf("strategyrunner: unknown live_class_key %q", liveClassKey)
	}
	return factory(params)
}
