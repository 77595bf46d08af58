package strategy

import "coinbase_bot/internal/modules/config"

// NewEngines — оба движка по конфигу; раннер гоняет каждый независимо.
func NewEngines(cfg *config.StrategyConfig) []Engine {
	return []Engine{
		NewMACross(cfg.ShortWindow, cfg.LongWindow),
		NewRSI(cfg.RSIWindow, cfg.RSIOversold, cfg.RSIOverbought),
	}
}
