package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"coinbase_bot/internal/errdefs"
)

const (
	configFilePathENV = "CONFIG_FILE"
	apiKeyENV         = "COINBASE_API_KEY"
	apiSecretENV      = "COINBASE_API_SECRET"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
)

// Dec — decimal с поддержкой yaml (деньги и размеры считаем точно).
type Dec struct {
	decimal.Decimal
}

func (d *Dec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		v, perr := decimal.NewFromString(s)
		if perr != nil {
			return perr
		}
		d.Decimal = v
		return nil
	}
	var f float64
	if err := unmarshal(&f); err != nil {
		return err
	}
	d.Decimal = decimal.NewFromFloat(f)
	return nil
}

// Duration — time.Duration из строк вида "1s", "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type RiskConfig struct {
	// Максимальный нетто-размер позиции по паре
	MaxPositionSize Dec `yaml:"max_position_size"`
	// Расстояние до стопа от цены входа, 0.05 => 5%
	StopLossPct float64 `yaml:"stop_loss_pct"`
	// Дневной kill switch: при pnl <= -MaxDailyLoss торговля останавливается
	MaxDailyLoss  Dec `yaml:"max_daily_loss"`
	MaxOpenOrders int `yaml:"max_open_orders"`
	// Потолок нотионала одного ордера (size*price)
	MaxOrderValue Dec `yaml:"max_order_value"`
}

type StrategyConfig struct {
	ShortWindow   int     `yaml:"short_window"`
	LongWindow    int     `yaml:"long_window"`
	RSIWindow     int     `yaml:"rsi_window"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	// Размер сигнальной сделки; если не задан — берём risk.max_position_size
	TradeSize Dec `yaml:"trade_size"`
}

type ExecutorConfig struct {
	RetryAttempts int      `yaml:"retry_attempts"`
	RetryDelay    Duration `yaml:"retry_delay"`
	// Таймаут одной попытки вызова биржи
	OrderTimeout Duration `yaml:"order_timeout"`
}

type RunnerConfig struct {
	Interval     Duration `yaml:"interval"`
	ErrorBackoff Duration `yaml:"error_backoff"`
	// Гасить все позиции при остановке
	FlattenOnShutdown bool `yaml:"flatten_on_shutdown"`
}

type HealthConfig struct {
	Addr string `yaml:"addr"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type JaegerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config ...
type Config struct {
	TradingPairs []string `yaml:"trading_pairs"`
	PaperTrading bool     `yaml:"paper_trading"`

	// Канонические имена кредов: api_key / api_secret
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`

	RESTURL  string   `yaml:"rest_url"`
	WSURL    string   `yaml:"ws_url"`
	Channels []string `yaml:"channels"`

	Risk     RiskConfig     `yaml:"risk"`
	Strategy StrategyConfig `yaml:"strategy"`
	Executor ExecutorConfig `yaml:"executor"`
	Runner   RunnerConfig   `yaml:"runner"`
	Health   HealthConfig   `yaml:"health"`
	Telegram TelegramConfig `yaml:"telegram"`
	Jaeger   JaegerConfig   `yaml:"jaeger"`
}

// NewConfig читает configs/$CONFIG_FILE, накатывает env-оверрайды и валидирует
// конфиг целиком. Любое нарушение — ConfigurationError, без частичных дефолтов.
func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	return Load("configs/" + configFileName)
}

// Load ...
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errdefs.Configuration("open config file: %v", err)
	}
	defer func() {
		_ = file.Close()
	}()

	config := defaults()
	if err = yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, errdefs.Configuration("decode config file: %v", err)
	}

	if key := os.Getenv(apiKeyENV); key != "" {
		config.APIKey = key
	}
	if secret := os.Getenv(apiSecretENV); secret != "" {
		config.APISecret = secret
	}
	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		PaperTrading: true,
		RESTURL:      "https://api.exchange.coinbase.com",
		WSURL:        "wss://ws-feed.exchange.coinbase.com",
		Channels:     []string{"ticker", "heartbeat"},
		Risk: RiskConfig{
			MaxPositionSize: Dec{decimal.RequireFromString("5.0")},
			StopLossPct:     0.05,
			MaxDailyLoss:    Dec{decimal.RequireFromString("500.0")},
			MaxOpenOrders:   intFromEnv("MAX_OPEN_ORDERS", 5),
			MaxOrderValue:   Dec{decimal.RequireFromString("50000.0")},
		},
		Strategy: StrategyConfig{
			ShortWindow:   intFromEnv("MA_SHORT", 5),
			LongWindow:    intFromEnv("MA_LONG", 20),
			RSIWindow:     intFromEnv("RSI_PERIOD", 14),
			RSIOversold:   floatFromEnv("RSI_OVERSOLD", 30),
			RSIOverbought: floatFromEnv("RSI_OVERBOUGHT", 70),
		},
		Executor: ExecutorConfig{
			RetryAttempts: 3,
			RetryDelay:    Duration{time.Second},
			OrderTimeout:  Duration{10 * time.Second},
		},
		Runner: RunnerConfig{
			Interval:     Duration{time.Second},
			ErrorBackoff: Duration{10 * time.Second},
		},
		Health: HealthConfig{Addr: ":8080"},
		Jaeger: JaegerConfig{Port: 6831},
	}
}

// Validate отвергает конфиг атомарно: либо весь валиден, либо ошибка на старте.
func (c *Config) Validate() error {
	if len(c.TradingPairs) == 0 {
		return errdefs.Configuration("trading_pairs is required")
	}
	for _, p := range c.TradingPairs {
		if p == "" {
			return errdefs.Configuration("trading_pairs contains an empty pair")
		}
	}
	if !c.PaperTrading && (c.APIKey == "" || c.APISecret == "") {
		return errdefs.Configuration("api_key and api_secret are required for live trading")
	}
	if c.RESTURL == "" || c.WSURL == "" {
		return errdefs.Configuration("rest_url and ws_url are required")
	}
	if len(c.Channels) == 0 {
		return errdefs.Configuration("at least one ws channel is required")
	}

	if !c.Risk.MaxPositionSize.IsPositive() {
		return errdefs.Configuration("risk.max_position_size must be positive")
	}
	if c.Risk.StopLossPct < 0 || c.Risk.StopLossPct >= 1 {
		return errdefs.Configuration("risk.stop_loss_pct must be in [0, 1)")
	}
	if c.Risk.MaxDailyLoss.IsNegative() {
		return errdefs.Configuration("risk.max_daily_loss must not be negative")
	}
	if c.Risk.MaxOpenOrders <= 0 {
		return errdefs.Configuration("risk.max_open_orders must be positive")
	}
	if !c.Risk.MaxOrderValue.IsPositive() {
		return errdefs.Configuration("risk.max_order_value must be positive")
	}

	s := &c.Strategy
	if s.ShortWindow <= 0 || s.LongWindow <= 0 || s.RSIWindow <= 0 {
		return errdefs.Configuration("strategy windows must be positive")
	}
	if s.ShortWindow >= s.LongWindow {
		return errdefs.Configuration("strategy.short_window must be less than long_window")
	}
	if s.RSIOversold <= 0 || s.RSIOverbought >= 100 || s.RSIOversold >= s.RSIOverbought {
		return errdefs.Configuration("strategy rsi thresholds must satisfy 0 < oversold < overbought < 100")
	}
	if s.TradeSize.IsZero() {
		s.TradeSize = c.Risk.MaxPositionSize
	}
	if s.TradeSize.IsNegative() {
		return errdefs.Configuration("strategy.trade_size must not be negative")
	}

	if c.Executor.RetryAttempts <= 0 {
		return errdefs.Configuration("executor.retry_attempts must be positive")
	}
	if c.Executor.RetryDelay.Duration <= 0 || c.Executor.OrderTimeout.Duration <= 0 {
		return errdefs.Configuration("executor delays must be positive")
	}
	if c.Runner.Interval.Duration <= 0 || c.Runner.ErrorBackoff.Duration <= 0 {
		return errdefs.Configuration("runner intervals must be positive")
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
