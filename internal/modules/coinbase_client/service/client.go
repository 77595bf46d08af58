package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"coinbase_bot/internal/modules/config"
)

// Client — подписанный REST-клиент Coinbase Exchange.
// Схема подписи одна на весь проект: base64(HMAC-SHA256(secret,
// timestamp + METHOD + path + body)), заголовки CB-ACCESS-*.
type Client struct {
	cfg *config.Config
	log *zap.Logger

	http      *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		cfg:       cfg,
		log:       log.With(zap.String("component", "coinbase_client")),
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   cfg.RESTURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
	}
}

// Sign — единственная функция подписи, её же использует ws-аутентификация.
func Sign(secret, timestamp, method, requestPath, body string) string {
	msg := timestamp + strings.ToUpper(method) + requestPath + body
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) signedRequest(ctx context.Context, method, requestPath, body string) (*http.Request, error) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, rd)
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("CB-ACCESS-KEY", c.apiKey)
	req.Header.Set("CB-ACCESS-SIGN", Sign(c.apiSecret, ts, method, requestPath, body))
	req.Header.Set("CB-ACCESS-TIMESTAMP", ts)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
