package service

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coinbase_bot/internal/models"
)

// PaperExchange — бумажный шлюз: синтезирует мгновенные филы без сети.
type PaperExchange struct {
	log    *zap.Logger
	orders atomic.Int64
}

func NewPaperExchange(log *zap.Logger) *PaperExchange {
	return &PaperExchange{log: log.With(zap.String("component", "paper_exchange"))}
}

func (p *PaperExchange) Buy(ctx context.Context, pair string, size, price decimal.Decimal) (string, error) {
	return p.fill(models.SideBuy, pair, size, price), nil
}

func (p *PaperExchange) Sell(ctx context.Context, pair string, size, price decimal.Decimal) (string, error) {
	return p.fill(models.SideSell, pair, size, price), nil
}

func (p *PaperExchange) fill(side models.Side, pair string, size, price decimal.Decimal) string {
	id := "paper-" + uuid.NewString()
	p.orders.Add(1)
	p.log.Info("paper fill",
		zap.String("pair", pair),
		zap.String("side", string(side)),
		zap.String("size", size.String()),
		zap.String("price", price.String()),
		zap.String("order_id", id),
	)
	return id
}

// Orders — сколько филов синтезировали за время жизни процесса.
func (p *PaperExchange) Orders() int64 { return p.orders.Load() }
