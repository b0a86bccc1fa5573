package strategyrunner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuildsEveryBuiltinStrategy(t *testing.T) {
	r := NewRegistry()
	for _, key := range []string{
		"always_long",
		"sma_trend1",
		"atr_trail_trend",
		"breakout_donchian",
		"ema_rsi_pullback",
		"boll_mfi_reversal",
	} {
		s, err := r.Build(key, nil)
		require.NoError(t, err, key)
		assert.NotNil(t, s, key)
	}
}

func TestRegistry_UnknownKey(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("nonexistent", nil)
	assert.Error(t, err)
}
