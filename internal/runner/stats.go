package runner

import (
	"time"

	"github.com/shopspring/decimal"

	"coinbase_bot/internal/models"
)

// DailyStats — дневные агрегаты процесса. Единственный писатель — Runner,
// обновление только после подтверждённого фила. Календарного сброса нет:
// сбрасываем только явным ResetDailyStats (решение за оператором).
type DailyStats struct {
	Trades    int
	Volume    decimal.Decimal
	PnL       decimal.Decimal
	LastReset time.Time
}

// Stats — копия текущих агрегатов.
func (r *Runner) Stats() DailyStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ResetDailyStats ...
func (r *Runner) ResetDailyStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = DailyStats{
		Volume:    decimal.Zero,
		PnL:       decimal.Zero,
		LastReset: time.Now(),
	}
	r.log.Info("daily stats reset")
}

// recordFill обновляет агрегаты после фила; на продаже реализуем pnl
// против цены входа до сделки.
func (r *Runner) recordFill(order *models.Order, entryBefore decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Trades++
	r.stats.Volume = r.stats.Volume.Add(order.Size.Mul(order.Price))
	if order.Side == models.SideSell {
		realized := order.Price.Sub(entryBefore).Mul(order.Size)
		r.stats.PnL = r.stats.PnL.Add(realized)
	}
}
