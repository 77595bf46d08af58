package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coinbase_bot/internal/errdefs"
	"coinbase_bot/internal/models"
)

// keepalive: без пингов биржа рвёт тихое соединение
const pingInterval = 20 * time.Second

type wsFrame struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Volume24h string `json:"volume_24h"`
	TradeID   int64  `json:"trade_id"`
	Time      string `json:"time"`
	Message   string `json:"message"`
}

// Run — полный цикл: connect -> authenticate -> subscribe -> receive.
// Возвращается при закрытии транспорта или ошибке потока; реконнект
// решает владелец.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	if err := c.Subscribe(ctx); err != nil {
		return err
	}
	return c.ReceiveData(ctx)
}

// ReceiveData — безграничный цикл приёма до закрытия транспорта или ошибки.
// Битое поле в отдельном тикере логируем и дропаем, поток не убиваем.
func (c *Client) ReceiveData(ctx context.Context) error {
	conn := c.connection()
	if conn == nil {
		return errdefs.Streaming(nil, "connection not established")
	}
	c.setState(StateStreaming)

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(ctx, conn, stopPing)

	// ReadMessage не реагирует на ctx: на отмене закрываем транспорт сами,
	// чтобы цикл приёма не завис на shutdown
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stopPing:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.setState(StateFaulted)
			return errdefs.Streaming(err, "stream read")
		}

		if err := c.processMessage(raw); err != nil {
			c.setState(StateFaulted)
			return err
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-t.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
	}
}

// processMessage диспатчит по type: ticker -> кэш, heartbeat -> отметка,
// error -> StreamingError, остальное игнорируем.
func (c *Client) processMessage(raw []byte) error {
	var frame wsFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.log.Warn("dropping unparsable frame", zap.Error(err))
		return nil
	}

	switch frame.Type {
	case "ticker":
		c.handleTicker(frame)
	case "heartbeat":
		c.mu.Lock()
		c.lastHeartbeat = time.Now()
		c.mu.Unlock()
	case "error":
		return errdefs.Streaming(nil, "stream error: %s", frame.Message)
	case "subscriptions":
		// подтверждение смены подписок, состояния не меняет
	default:
		c.log.Debug("ignoring message", zap.String("type", frame.Type))
	}
	return nil
}

func (c *Client) handleTicker(frame wsFrame) {
	if frame.ProductID == "" || frame.Price == "" {
		c.log.Warn("incomplete ticker", zap.String("pair", frame.ProductID))
		return
	}
	price, err := strconv.ParseFloat(frame.Price, 64)
	if err != nil || price <= 0 {
		c.log.Warn("dropping ticker with bad price",
			zap.String("pair", frame.ProductID),
			zap.String("price", frame.Price),
		)
		return
	}

	t := models.Ticker{
		Pair:    frame.ProductID,
		Price:   price,
		TradeID: frame.TradeID,
		Time:    time.Now(),
	}
	// объём опциональный: битое поле не роняет тикер
	if frame.Volume24h != "" {
		if v, verr := strconv.ParseFloat(frame.Volume24h, 64); verr == nil {
			t.Volume24h = v
		}
	}
	if frame.Time != "" {
		if ts, terr := time.Parse(time.RFC3339, frame.Time); terr == nil {
			t.Time = ts
		}
	}

	c.mu.Lock()
	c.prices[frame.ProductID] = price
	c.tickers[frame.ProductID] = t
	c.mu.Unlock()
}
