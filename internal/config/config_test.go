package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "DEV", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.ScheduleInterval)

	require.Len(t, cfg.Assets, 4)
	btc := cfg.Assets[0]
	assert.Equal(t, "XXBTZEUR", btc.Pair)
	assert.Equal(t, "XXBT", btc.Asset)
	assert.Equal(t, 40.0, btc.RSIThreshold)
	assert.Equal(t, 200, btc.SMAWindow)
	assert.Equal(t, 8.0, btc.AmountEUR)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CB0TENV", "PROD")
	t.Setenv("KRAKENAPIKEY", "key-from-env")
	t.Setenv("KRAKENAPISECRET", "secret-from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "key-from-env", cfg.APIKey)
	assert.Equal(t, "secret-from-env", cfg.APISecret)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cb0t.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: PROD
port: 9090
schedule_interval: 1h
assets:
  - pair: XXBTZEUR
    asset: XXBT
    rsi_threshold: 30
    sma_window: 100
    amount_eur: 25
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, time.Hour, cfg.ScheduleInterval)
	require.Len(t, cfg.Assets, 1)
	assert.Equal(t, 30.0, cfg.Assets[0].RSIThreshold)
	assert.Equal(t, 100, cfg.Assets[0].SMAWindow)
	assert.Equal(t, 25.0, cfg.Assets[0].AmountEUR)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestBalancePair(t *testing.T) {
	t.Parallel()
	cfg := &Config{Assets: []AssetConfig{
		{Pair: "XXBTZEUR", Asset: "XXBT"},
		{Pair: "SOLEUR", Asset: "SOL"},
	}}

	pair, ok := cfg.BalancePair("SOL")
	assert.True(t, ok)
	assert.Equal(t, "SOLEUR", pair)

	_, ok = cfg.BalancePair("DOGE")
	assert.False(t, ok)
}
