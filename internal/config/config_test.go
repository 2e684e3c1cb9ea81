package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 20, cfg.MaxBasketLines)
	assert.Equal(t, 50, cfg.MaxQtyPerLine)
	assert.Equal(t, 30*time.Second, cfg.PurchaseTxTimeout)
	assert.Equal(t, int64(50000), cfg.BigWinThresholdCents)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MAX_BASKET_LINES", "5")
	t.Setenv("MAX_QTY_PER_LINE", "3")
	t.Setenv("PURCHASE_TX_TIMEOUT", "10s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 5, cfg.MaxBasketLines)
	assert.Equal(t, 3, cfg.MaxQtyPerLine)
	assert.Equal(t, 10*time.Second, cfg.PurchaseTxTimeout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("MAX_BASKET_LINES", "not-a-number")
	t.Setenv("PURCHASE_TX_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxBasketLines)
	assert.Equal(t, 30*time.Second, cfg.PurchaseTxTimeout)
}
