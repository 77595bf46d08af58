package models

type StrategyType string

const (
	StrategyMACross StrategyType = "macross"
	StrategyRSI     StrategyType = "rsi"
)

// Signal — ответ стратегии по одной паре на очередной цене.
type Signal struct {
	Pair     string
	Side     Side // buy / sell / ""
	Price    float64
	Strategy StrategyType
	Reason   string
}
