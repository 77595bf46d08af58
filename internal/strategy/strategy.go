package strategy

import "coinbase_bot/internal/models"

// Engine — то, что Runner дергает на каждой свежей цене.
// Обе стратегии — чистые функции накопленной истории цен; состояние у
// каждого движка своё, под собственным мьютексом.
type Engine interface {
	OnPrice(pair string, price float64) models.Signal
	Name() models.StrategyType
	Dump(pair string) string
}
