package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinbase_bot/internal/errdefs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validYAML = `
trading_pairs: ["BTC-USD", "ETH-USD"]
paper_trading: true
risk:
  max_position_size: "2.5"
  stop_loss_pct: 0.05
  max_daily_loss: "300.0"
  max_open_orders: 5
  max_order_value: "10000.0"
strategy:
  short_window: 5
  long_window: 20
  rsi_window: 14
  rsi_oversold: 30
  rsi_overbought: 70
executor:
  retry_attempts: 3
  retry_delay: "1s"
  order_timeout: "10s"
runner:
  interval: "1s"
  error_backoff: "10s"
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.TradingPairs)
	assert.True(t, cfg.PaperTrading)
	assert.True(t, cfg.Risk.MaxPositionSize.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, time.Second, cfg.Executor.RetryDelay.Duration)
	assert.Equal(t, 10*time.Second, cfg.Executor.OrderTimeout.Duration)
	// trade_size не задан — падаем обратно на max_position_size
	assert.True(t, cfg.Strategy.TradeSize.Equal(cfg.Risk.MaxPositionSize.Decimal))
	// дефолты докатились
	assert.Equal(t, "wss://ws-feed.exchange.coinbase.com", cfg.WSURL)
	assert.Equal(t, []string{"ticker", "heartbeat"}, cfg.Channels)
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("COINBASE_API_KEY", "env-key")
	t.Setenv("COINBASE_API_SECRET", "env-secret")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "env-secret", cfg.APISecret)
}

func TestLoad_MissingPairs(t *testing.T) {
	_, err := Load(writeConfig(t, `
trading_pairs: []
paper_trading: true
`))
	require.Error(t, err)
	var cerr *errdefs.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestLoad_LiveWithoutCredentials(t *testing.T) {
	t.Setenv("COINBASE_API_KEY", "")
	t.Setenv("COINBASE_API_SECRET", "")

	_, err := Load(writeConfig(t, `
trading_pairs: ["BTC-USD"]
paper_trading: false
`))
	require.Error(t, err)
	var cerr *errdefs.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Msg, "api_key")
}

func TestLoad_RejectsInvalidWindows(t *testing.T) {
	_, err := Load(writeConfig(t, `
trading_pairs: ["BTC-USD"]
paper_trading: true
strategy:
  short_window: 20
  long_window: 5
`))
	require.Error(t, err)
	var cerr *errdefs.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	var cerr *errdefs.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}
