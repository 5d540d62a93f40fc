// Package event defines the domain events the matching engine publishes to
// the output pipeline and the codecs that turn them into opaque payloads.
package event

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMalformedEvent = errors.New("malformed event")

type Kind uint8

const (
	KindInvalid Kind = iota
	KindOrderAccepted
	KindTradeExecuted
	KindOrderCanceled
)

func (k Kind) String() string {
	switch k {
	case KindOrderAccepted:
		return "OrderAccepted"
	case KindTradeExecuted:
		return "TradeExecuted"
	case KindOrderCanceled:
		return "OrderCanceled"
	default:
		return "Invalid"
	}
}

func (k Kind) valid() bool {
	return k >= KindOrderAccepted && k <= KindOrderCanceled
}

// Event is a flat record covering every kind. Seq is the order submission
// sequence for order events and the trade sequence for TradeExecuted.
type Event struct {
	Kind      Kind            `json:"kind"`
	Symbol    string          `json:"symbol"`
	Seq       uint64          `json:"seq"`
	OrderID   string          `json:"order_id,omitempty"`
	TraderID  string          `json:"trader_id,omitempty"`
	Side      string          `json:"side,omitempty"`
	OrderType string          `json:"order_type,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Remaining decimal.Decimal `json:"remaining"`

	// trade only
	TradeID      string `json:"trade_id,omitempty"`
	BuyOrderID   string `json:"buy_order_id,omitempty"`
	SellOrderID  string `json:"sell_order_id,omitempty"`
	BuyTraderID  string `json:"buy_trader_id,omitempty"`
	SellTraderID string `json:"sell_trader_id,omitempty"`

	Timestamp time.Time `json:"ts"`
}

// Codec converts events to and from pipeline payloads.
type Codec interface {
	Encode(ev *Event) ([]byte, error)
	Decode(payload []byte) (*Event, error)
}
