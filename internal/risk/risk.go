// Package risk — дефолтная реализация контракта check_order_risk.
// Executor принимает любую реализацию RiskChecker; nil выключает проверку.
package risk

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coinbase_bot/internal/models"
)

type Manager struct {
	log *zap.Logger

	// потолок размера одного ордера (совпадает с лимитом нетто-позиции)
	maxOrderSize decimal.Decimal
	// потолок нотионала одного ордера (size * price)
	maxOrderValue decimal.Decimal
}

func NewManager(maxOrderSize, maxOrderValue decimal.Decimal, log *zap.Logger) *Manager {
	return &Manager{
		log:           log.With(zap.String("component", "risk")),
		maxOrderSize:  maxOrderSize,
		maxOrderValue: maxOrderValue,
	}
}

// CheckOrderRisk: false — ордер не размещаем. Контракт (pair, side, size,
// price) -> bool, сторона тут не влияет на лимиты.
func (m *Manager) CheckOrderRisk(ctx context.Context, pair string, side models.Side, size, price decimal.Decimal) bool {
	if size.GreaterThan(m.maxOrderSize) {
		m.log.Warn("order size above limit",
			zap.String("pair", pair),
			zap.String("size", size.String()),
			zap.String("limit", m.maxOrderSize.String()),
		)
		return false
	}
	notional := size.Mul(price)
	if notional.GreaterThan(m.maxOrderValue) {
		m.log.Warn("order notional above limit",
			zap.String("pair", pair),
			zap.String("notional", notional.String()),
			zap.String("limit", m.maxOrderValue.String()),
		)
		return false
	}
	return true
}
