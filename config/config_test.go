package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv neutraliza variables del entorno de la máquina que ejecuta los
// tests para que los overrides no contaminen los resultados.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ODDS_API_KEY", "PM_PRIVATE_KEY", "PM_FUNDER",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "engine:\n  dry_run: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Engine.DryRun)
	assert.Equal(t, 60*time.Second, cfg.PollInterval())
	assert.Equal(t, 10*time.Minute, cfg.ResolutionInterval())
	assert.Equal(t, []string{"basketball_nba"}, cfg.Engine.Sports)

	assert.Equal(t, "https://api.the-odds-api.com", cfg.Odds.BaseURL)
	assert.Equal(t, []string{"pinnacle", "betonlineag", "lowvig", "betus"}, cfg.Odds.TrustedBooks)
	assert.Equal(t, 10*time.Minute, cfg.MaxQuoteAge())
	assert.Equal(t, 2, cfg.Odds.MinSources)

	assert.Equal(t, "https://clob.polymarket.com", cfg.Exchange.CLOBBase)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Exchange.GammaBase)
	assert.Equal(t, "clob", cfg.Exchange.BalanceSource)

	assert.False(t, cfg.Risk.DynamicEdge) // estático salvo que el YAML lo active
	assert.InDelta(t, 0.025, cfg.Risk.EdgeTier4Plus, 1e-9)
	assert.InDelta(t, 0.035, cfg.Risk.EdgeTier3, 1e-9)
	assert.InDelta(t, 0.05, cfg.Risk.EdgeTier2, 1e-9)
	assert.InDelta(t, 0.02, cfg.Risk.VarianceCeiling, 1e-9)
	assert.InDelta(t, 0.10, cfg.Risk.MinPrice, 1e-9)
	assert.InDelta(t, 50, cfg.Risk.MinAskLiquidityUSD, 1e-9)
	assert.InDelta(t, 10, cfg.Risk.MinBidLiquidityUSD, 1e-9)

	assert.Equal(t, "kelly", cfg.Sizing.Mode)
	assert.InDelta(t, 0.25, cfg.Sizing.KellyMultiplier, 1e-9)
	assert.InDelta(t, 0.03, cfg.Sizing.MaxBetFraction, 1e-9)

	assert.InDelta(t, 0.8, cfg.Exposure.SameEventFactor, 1e-9)
	assert.InDelta(t, 0.3, cfg.Exposure.SameDayFactor, 1e-9)

	assert.Equal(t, 5*time.Minute, cfg.CrunchClock())
	assert.Equal(t, 4, cfg.Exits.RegulationPeriods)
	assert.Equal(t, 2*time.Hour, cfg.BreakerCooldown())

	assert.Equal(t, "sharpbot.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
engine:
  poll_interval_seconds: 30
  sports: [basketball_nba, americanfootball_nfl]
odds:
  max_quote_age_seconds: 120
  min_sources: 3
  trusted_books: [pinnacle]
risk:
  min_edge: 0.08
  dynamic_edge: true
sizing:
  mode: fixed_shares
  base_shares: 100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, []string{"basketball_nba", "americanfootball_nfl"}, cfg.Engine.Sports)
	assert.Equal(t, 2*time.Minute, cfg.MaxQuoteAge())
	assert.Equal(t, 3, cfg.Odds.MinSources)
	assert.Equal(t, []string{"pinnacle"}, cfg.Odds.TrustedBooks)
	assert.InDelta(t, 0.08, cfg.Risk.MinEdge, 1e-9)
	assert.True(t, cfg.Risk.DynamicEdge)
	assert.Equal(t, "fixed_shares", cfg.Sizing.Mode)
	assert.InDelta(t, 100, cfg.Sizing.BaseShares, 1e-9)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ODDS_API_KEY", "key-from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, "odds:\n  api_key: key-from-yaml\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.Odds.APIKey)
	assert.Equal(t, int64(42), cfg.Notify.TelegramChatID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatcher_ReloadSwapsSnapshot(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "risk:\n  min_edge: 0.05\n")

	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial)
	require.NoError(t, err)
	defer w.Close()

	assert.Same(t, initial, w.Snapshot())

	require.NoError(t, os.WriteFile(path, []byte("risk:\n  min_edge: 0.09\n"), 0o644))
	w.lastLoad = time.Time{} // saltar el cooldown en el test
	w.reload()

	got := w.Snapshot()
	assert.NotSame(t, initial, got)
	assert.InDelta(t, 0.09, got.Risk.MinEdge, 1e-9)
}

func TestWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "risk:\n  min_edge: 0.05\n")

	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(":: not yaml ::"), 0o644))
	w.lastLoad = time.Time{}
	w.reload()

	assert.Same(t, initial, w.Snapshot())
}
