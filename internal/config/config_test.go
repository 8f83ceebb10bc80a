package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	a := cfg.Arbitrage
	assert.Equal(t, 0.80, a.MinEquivalenceScore)
	assert.Equal(t, 0.70, a.MinTitleSimilarity)
	assert.Equal(t, 7.0, a.MaxDateDriftDays)
	assert.Equal(t, 0.02, a.MinNetProfitPct)
	assert.Equal(t, 0.03, a.MinGrossProfitPct)
	assert.Equal(t, 60.0, a.MaxRiskScore)
	assert.Equal(t, 50.0, a.MaxExecutionRisk)
	assert.Equal(t, 500.0, a.MinLiquidityUSD)
	assert.Equal(t, 1000.0, a.MinVolumeUSD)
	assert.Equal(t, 0.05, a.MaxPositionPct)
	assert.Equal(t, 100.0, a.DefaultPositionUSD)
	assert.Equal(t, 1000.0, a.MaxPositionUSD)
	assert.Equal(t, 5000, a.MaxExecutionTimeMs)
	assert.Equal(t, 0.02, a.MaxPriceDeviation)

	assert.Equal(t, 5*time.Minute, cfg.Registry.RefreshInterval)
	assert.Equal(t, 45*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 100, cfg.Monitor.HistoryLimit)
	assert.Equal(t, 30*time.Minute, cfg.Dedup.Cooldown)
	assert.Equal(t, 2*time.Hour, cfg.Dedup.Retention)
	assert.Equal(t, 5.0, cfg.Dedup.ProfitBumpPct)
	assert.Equal(t, []string{"polymarket", "kalshi"}, cfg.Scanner.Platforms)

	require.Contains(t, cfg.Platforms, "kalshi")
	assert.Equal(t, FeeModelParabolic, cfg.Platforms["kalshi"].FeeModel)
	assert.Equal(t, 0.07, cfg.Platforms["kalshi"].ParabolicCoefficient)

	assert.Equal(t, cfg.Arbitrage, Default().Arbitrage)
}

func TestEnvOverrideRejectsContradictoryThresholds(t *testing.T) {
	t.Setenv("ARB_ARBITRAGE_MIN_NET_PROFIT_PCT", "0.05")

	_, err := Load("")
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "arbitrage.min_net_profit_pct", cfgErr.Field)
	assert.True(t, IsConfigurationError(err))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arb.yaml")
	body := `
arbitrage:
  min_net_profit_pct: 0.01
monitor:
  interval: 30s
  alert_channels: ["ops"]
scanner:
  platforms: ["kalshi"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.Arbitrage.MinNetProfitPct)
	assert.Equal(t, 0.03, cfg.Arbitrage.MinGrossProfitPct)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, []string{"ops"}, cfg.Monitor.AlertChannels)
	assert.Equal(t, []string{"kalshi"}, cfg.Scanner.Platforms)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.False(t, IsConfigurationError(err))
}

func TestArbitrageValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Arbitrage)
		field  string
	}{
		{"score above one", func(a *Arbitrage) { a.MinEquivalenceScore = 1.2 }, "arbitrage.min_equivalence_score"},
		{"net above gross", func(a *Arbitrage) { a.MinNetProfitPct = 0.04 }, "arbitrage.min_net_profit_pct"},
		{"cap below drift", func(a *Arbitrage) { a.HardDateCapDays = 3 }, "arbitrage.hard_date_cap_days"},
		{"risk above 100", func(a *Arbitrage) { a.MaxRiskScore = 120 }, "arbitrage.max_risk_score"},
		{"default above max", func(a *Arbitrage) { a.DefaultPositionUSD = 5000 }, "arbitrage.default_position_usd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := DefaultArbitrage()
			tc.mutate(&a)
			err := a.Validate()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
	assert.NoError(t, DefaultArbitrage().Validate())
}

func TestValidateSections(t *testing.T) {
	cfg := Default()
	cfg.Telegram.Enabled = true
	assert.True(t, IsConfigurationError(cfg.Validate()))

	cfg = Default()
	cfg.Dedup.Persist = true
	assert.True(t, IsConfigurationError(cfg.Validate()))

	cfg = Default()
	cfg.Registry.MinEquivalenceScore = 0.9
	assert.True(t, IsConfigurationError(cfg.Validate()))

	assert.NoError(t, Default().Validate())
}
