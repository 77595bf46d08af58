package models

import "time"

// Ticker — последняя сделка по паре из ws-канала ticker.
type Ticker struct {
	Pair      string
	Price     float64
	Volume24h float64
	TradeID   int64
	Time      time.Time
}
