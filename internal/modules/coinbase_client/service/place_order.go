package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coinbase_bot/internal/errdefs"
	"coinbase_bot/internal/models"
)

// Buy размещает рыночный ордер на покупку. price индикативная, в payload не идёт.
func (c *Client) Buy(ctx context.Context, pair string, size, price decimal.Decimal) (string, error) {
	return c.placeMarketOrder(ctx, models.SideBuy, pair, size)
}

// Sell размещает рыночный ордер на продажу.
func (c *Client) Sell(ctx context.Context, pair string, size, price decimal.Decimal) (string, error) {
	return c.placeMarketOrder(ctx, models.SideSell, pair, size)
}

func (c *Client) placeMarketOrder(ctx context.Context, side models.Side, pair string, size decimal.Decimal) (string, error) {
	body := map[string]string{
		"type":       "market",
		"side":       string(side),
		"product_id": pair,
		"size":       size.String(),
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return "", errdefs.Exchange(err, "marshal %s order", side)
	}

	const requestPath = "/orders"
	req, err := c.signedRequest(ctx, http.MethodPost, requestPath, string(payload))
	if err != nil {
		return "", errdefs.Exchange(err, "build %s order request", side)
	}

	c.log.Info("placing market order",
		zap.String("pair", pair),
		zap.String("side", string(side)),
		zap.String("size", size.String()),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errdefs.Exchange(err, "coinbase %s order", side)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", errdefs.Exchange(nil, "coinbase %s order http %d: %s", side, resp.StatusCode, string(data))
	}

	var r orderResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return "", errdefs.Exchange(err, "decode order response: %s", string(data))
	}
	if r.Message != "" {
		return "", errdefs.Exchange(nil, "coinbase rejected %s order: %s", side, r.Message)
	}
	if r.ID == "" {
		return models.OrderIDUnknown, nil
	}

	c.log.Info("order placed", zap.String("order_id", r.ID), zap.String("pair", pair))
	return r.ID, nil
}
