package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"coinbase_bot/internal/errdefs"
)

// FetchPrice — одноразовый REST-запрос последней цены. Используется
// стрим-клиентом как фолбэк при промахе кэша.
func (c *Client) FetchPrice(ctx context.Context, pair string) (float64, error) {
	requestPath := "/products/" + pair + "/ticker"
	req, err := c.signedRequest(ctx, http.MethodGet, requestPath, "")
	if err != nil {
		return 0, errdefs.Connection(err, "build ticker request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errdefs.Connection(err, "fetch ticker %s", pair)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return 0, errdefs.Exchange(nil, "ticker %s http %d: %s", pair, resp.StatusCode, string(b))
	}

	var t tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return 0, errdefs.Exchange(err, "decode ticker %s", pair)
	}

	p, err := strconv.ParseFloat(t.Price, 64)
	if err != nil || p <= 0 {
		return 0, &errdefs.NoPriceError{Pair: pair}
	}
	return p, nil
}
