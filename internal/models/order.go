package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side — сторона ордера: "buy"/"sell" или пустая строка (нет сигнала).
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid — только buy/sell считаются валидной стороной ордера.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

const StatusFilled = "filled"

// OrderIDUnknown подставляем, когда биржа не вернула id ордера.
const OrderIDUnknown = "UNKNOWN"

// Order — результат успешного исполнения. Живёт только в памяти процесса.
type Order struct {
	Status    string
	OrderID   string
	Pair      string
	Side      Side
	Size      decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}
