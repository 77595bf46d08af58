package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position — нетто-позиция по паре: размер и средневзвешенная цена входа.
// Инвариант: EntryPrice всегда средневзвешенная цена текущего Size;
// при Size == 0 EntryPrice сбрасывается в 0.
type Position struct {
	Pair       string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	Updated    time.Time
}

// Flat — позиции нет.
func (p Position) Flat() bool {
	return p.Size.IsZero()
}
