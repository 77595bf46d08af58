package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coinbase_bot/internal/errdefs"
	"coinbase_bot/internal/models"
	"coinbase_bot/internal/modules/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.Config{
		RESTURL:   baseURL,
		APIKey:    "test-key",
		APISecret: "test-secret",
	}, zap.NewNop())
}

func TestSign(t *testing.T) {
	// детерминированность и регистронезависимость метода
	a := Sign("secret", "1700000000", "get", "/orders", "")
	b := Sign("secret", "1700000000", "GET", "/orders", "")
	assert.Equal(t, a, b, "method must be uppercased before signing")

	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32, "HMAC-SHA256 digest")

	// любая часть сообщения меняет подпись
	assert.NotEqual(t, a, Sign("other", "1700000000", "GET", "/orders", ""))
	assert.NotEqual(t, a, Sign("secret", "1700000001", "GET", "/orders", ""))
	assert.NotEqual(t, a, Sign("secret", "1700000000", "GET", "/products", ""))
	assert.NotEqual(t, a, Sign("secret", "1700000000", "GET", "/orders", `{"x":1}`))
}

func TestPlaceMarketOrder_SignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-key", r.Header.Get("CB-ACCESS-KEY"))

		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "market", payload["type"])
		assert.Equal(t, "buy", payload["side"])
		assert.Equal(t, "BTC-USD", payload["product_id"])
		assert.Equal(t, "1.5", payload["size"])

		// подпись должна сходиться по присланному таймстемпу и телу
		ts := r.Header.Get("CB-ACCESS-TIMESTAMP")
		require.NotEmpty(t, ts)
		want := Sign("test-secret", ts, http.MethodPost, "/orders", string(body))
		assert.Equal(t, want, r.Header.Get("CB-ACCESS-SIGN"))

		_, _ = w.Write([]byte(`{"id":"order-123","status":"pending"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Buy(context.Background(), "BTC-USD",
		decimal.RequireFromString("1.5"), decimal.RequireFromString("50000"))
	require.NoError(t, err)
	assert.Equal(t, "order-123", id)
}

func TestPlaceMarketOrder_HTTPErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"internal"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Sell(context.Background(), "BTC-USD",
		decimal.RequireFromString("1"), decimal.RequireFromString("50000"))
	require.Error(t, err)

	var exErr *errdefs.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.True(t, errdefs.Retryable(err))
}

func TestPlaceMarketOrder_RejectedByExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Insufficient funds"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Buy(context.Background(), "BTC-USD",
		decimal.RequireFromString("1"), decimal.RequireFromString("50000"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient funds")
}

func TestPlaceMarketOrder_EmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Buy(context.Background(), "BTC-USD",
		decimal.RequireFromString("1"), decimal.RequireFromString("50000"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderIDUnknown, id)
}

func TestFetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products/BTC-USD/ticker", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))
		_, _ = w.Write([]byte(`{"trade_id":99,"price":"42000.42","volume":"123.4"}`))
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).FetchPrice(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 42000.42, p)
}

func TestFetchPrice_UnparsablePrice(t *testing.T) {
	for _, body := range []string{`{"price":""}`, `{"price":"n/a"}`, `{"price":"0"}`, `{"price":"-5"}`} {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).FetchPrice(context.Background(), "BTC-USD")
			var nerr *errdefs.NoPriceError
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, "BTC-USD", nerr.Pair)
		})
	}
}

func TestFetchPrice_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPrice(context.Background(), "NOPE-USD")
	var exErr *errdefs.ExchangeError
	require.ErrorAs(t, err, &exErr)
}

func TestFetchPrice_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).FetchPrice(context.Background(), "BTC-USD")
	var cerr *errdefs.ConnectionError
	require.ErrorAs(t, err, &cerr)
}

func TestPaperExchange(t *testing.T) {
	p := NewPaperExchange(zap.NewNop())
	ctx := context.Background()

	id1, err := p.Buy(ctx, "BTC-USD", decimal.RequireFromString("1"), decimal.RequireFromString("50000"))
	require.NoError(t, err)
	id2, err := p.Sell(ctx, "BTC-USD", decimal.RequireFromString("1"), decimal.RequireFromString("51000"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id1, "paper-"))
	assert.True(t, strings.HasPrefix(id2, "paper-"))
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, int64(2), p.Orders())
}
