package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coinbase_bot/internal/errdefs"
	"coinbase_bot/internal/models"
	clientsvc "coinbase_bot/internal/modules/coinbase_client/service"
	"coinbase_bot/internal/modules/config"
)

// State — фаза жизненного цикла стрим-соединения.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSubscribing
	StateStreaming
	StateClosing
	StateFaulted
)

// путь, который подписываем в ws-аутентификации (та же схема, что и REST)
const wsAuthPath = "/users/self/verify"

// PriceFetcher — REST-фолбэк при промахе кэша цен.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, pair string) (float64, error)
}

// ConnFlag — куда клиент отмечает фактическое состояние транспорта;
// поднимается только после успешного dial, health не должен видеть
// "живой" стрим во время неудачных попыток коннекта.
type ConnFlag interface {
	SetWSConnected(bool)
}

// Client держит одно ws-соединение: connect -> authenticate -> subscribe ->
// receive -> close. Кэш последних цен: единственный писатель — этот клиент,
// читатели согласны на eventual consistency. Клиент сам не реконнектится:
// падение потока отдаём владельцу (runner) типизированной StreamingError.
type Client struct {
	log  *zap.Logger
	rest PriceFetcher
	flag ConnFlag // nil = не репортим

	wsDialer  *websocket.Dialer
	wsURL     string
	apiKey    string
	apiSecret string
	pairs     []string
	channels  []string

	mu            sync.RWMutex
	conn          *websocket.Conn
	state         State
	prices        map[string]float64
	tickers       map[string]models.Ticker
	lastHeartbeat time.Time
}

func NewClient(cfg *config.Config, rest PriceFetcher, flag ConnFlag, log *zap.Logger) *Client {
	return &Client{
		log:       log.With(zap.String("component", "coinbase_ws")),
		rest:      rest,
		flag:      flag,
		wsDialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		wsURL:     cfg.WSURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		pairs:     cfg.TradingPairs,
		channels:  cfg.Channels,
		prices:    make(map[string]float64),
		tickers:   make(map[string]models.Ticker),
		state:     StateDisconnected,
	}
}

// Connect открывает транспорт. Ошибка транспорта — ConnectionError и Faulted;
// решение о повторе за вызывающим.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, _, err := c.wsDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		c.setState(StateFaulted)
		return errdefs.Connection(err, "dial %s", c.wsURL)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	if c.flag != nil {
		c.flag.SetWSConnected(true)
	}
	c.log.Info("websocket connected", zap.String("url", c.wsURL))
	return nil
}

type authMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
	Signature  string   `json:"signature"`
	Key        string   `json:"key"`
	Timestamp  string   `json:"timestamp"`
}

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// Authenticate шлёт подписанное credential-сообщение и ждёт структурный ответ.
// Ответ type=error — Faulted + StreamingError.
func (c *Client) Authenticate(ctx context.Context) error {
	c.setState(StateAuthenticating)

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := authMessage{
		Type:       "subscribe",
		ProductIDs: c.pairs,
		Channels:   c.channels,
		Signature:  clientsvc.Sign(c.apiSecret, ts, http.MethodGet, wsAuthPath, ""),
		Key:        c.apiKey,
		Timestamp:  ts,
	}

	if err := c.sendJSON(msg); err != nil {
		c.setState(StateFaulted)
		return errdefs.Streaming(err, "send auth message")
	}

	if err := c.awaitAck("authentication"); err != nil {
		c.setState(StateFaulted)
		return err
	}
	c.log.Info("websocket authenticated")
	return nil
}

// Subscribe отправляет пары и каналы и ждёт подтверждение.
func (c *Client) Subscribe(ctx context.Context) error {
	c.setState(StateSubscribing)

	msg := subscribeMessage{
		Type:       "subscribe",
		ProductIDs: c.pairs,
		Channels:   c.channels,
	}
	if err := c.sendJSON(msg); err != nil {
		c.setState(StateFaulted)
		return errdefs.Streaming(err, "send subscribe message")
	}

	if err := c.awaitAck("subscription"); err != nil {
		c.setState(StateFaulted)
		return err
	}

	c.log.Info("subscribed",
		zap.Strings("pairs", c.pairs),
		zap.Strings("channels", c.channels),
	)
	return nil
}

// awaitAck читает один ответ сервера с дедлайном; type=error — отказ.
func (c *Client) awaitAck(stage string) error {
	conn := c.connection()
	if conn == nil {
		return errdefs.Streaming(nil, "%s: connection not established", stage)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return errdefs.Streaming(err, "%s: read response", stage)
	}

	var resp struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return errdefs.Streaming(err, "%s: invalid response", stage)
	}
	if resp.Type == "error" {
		return errdefs.Streaming(nil, "%s failed: %s", stage, resp.Message)
	}
	return nil
}

// sendJSON маршалит sonic-ом и пишет текстовый фрейм.
func (c *Client) sendJSON(v any) error {
	conn := c.connection()
	if conn == nil {
		return errdefs.Streaming(nil, "connection not established")
	}
	payload, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close — best effort, идемпотентный, никогда не возвращает ошибку наружу.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateClosing
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	c.setState(StateDisconnected)
}

// GetCurrentPrice: кэш, иначе одноразовый подписанный REST-фетч с кэшированием.
// Нет цены нигде — типизированная NoPriceError, ноль не возвращаем.
func (c *Client) GetCurrentPrice(ctx context.Context, pair string) (float64, error) {
	c.mu.RLock()
	p, ok := c.prices[pair]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	if c.rest == nil {
		return 0, &errdefs.NoPriceError{Pair: pair}
	}
	p, err := c.rest.FetchPrice(ctx, pair)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.prices[pair] = p
	c.mu.Unlock()
	return p, nil
}

// SimulatePriceUpdate пишет прямо в кэш, минуя сеть. Для бумажной торговли
// и тестов.
func (c *Client) SimulatePriceUpdate(pair string, price float64) {
	c.mu.Lock()
	c.prices[pair] = price
	c.tickers[pair] = models.Ticker{Pair: pair, Price: price, Time: time.Now()}
	c.mu.Unlock()
}

// Ticker — последний тикер по паре целиком (цена, объём, trade id).
func (c *Client) Ticker(pair string) (models.Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickers[pair]
	return t, ok
}

// LastHeartbeat — когда последний раз видели heartbeat от биржи.
func (c *Client) LastHeartbeat() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHeartbeat
}

// State ...
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Streaming — соединение живо и мы в цикле приёма.
func (c *Client) Streaming() bool {
	return c.State() == StateStreaming
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()

	if c.flag != nil {
		switch s {
		case StateFaulted, StateClosing, StateDisconnected:
			c.flag.SetWSConnected(false)
		}
	}
}

func (c *Client) connection() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}
