package orderbook

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is immutable once emitted. Price is always the resting order's price.
type Trade struct {
	ID           string
	Seq          uint64
	Symbol       string
	BuyOrderID   string
	SellOrderID  string
	BuyTraderID  string
	SellTraderID string
	TakerSide    Side
	Price        decimal.Decimal
	Volume       decimal.Decimal
	ExecutedAt   time.Time
}
