package orderbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

func (s Side) opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

type OrderType string

const (
	LIMIT  OrderType = "LIMIT"
	MARKET OrderType = "MARKET"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
)

// Order is submitted by value. The book keeps its own copy, so the fields a
// caller sets are never mutated behind its back; the matching state
// (remaining volume, sequence, status) is only visible through the
// accessors on snapshots handed out by the book.
type Order struct {
	ID       string
	Symbol   string
	Side     Side
	Type     OrderType
	Price    decimal.NullDecimal // must be set for LIMIT, unset for MARKET
	Volume   decimal.Decimal     // original volume
	TraderID string

	remaining  decimal.Decimal
	seq        uint64
	status     OrderStatus
	acceptedAt time.Time
}

// NewLimitOrder builds a limit order.
func NewLimitOrder(id, symbol string, side Side, price, volume decimal.Decimal, traderID string) Order {
	return Order{
		ID:       id,
		Symbol:   symbol,
		Side:     side,
		Type:     LIMIT,
		Price:    decimal.NewNullDecimal(price),
		Volume:   volume,
		TraderID: traderID,
	}
}

// NewMarketOrder builds a market order; it carries no price.
func NewMarketOrder(id, symbol string, side Side, volume decimal.Decimal, traderID string) Order {
	return Order{
		ID:       id,
		Symbol:   symbol,
		Side:     side,
		Type:     MARKET,
		Volume:   volume,
		TraderID: traderID,
	}
}

func (o *Order) Remaining() decimal.Decimal { return o.remaining }
func (o *Order) Filled() decimal.Decimal    { return o.Volume.Sub(o.remaining) }
func (o *Order) Seq() uint64                { return o.seq }
func (o *Order) Status() OrderStatus        { return o.status }
func (o *Order) AcceptedAt() time.Time      { return o.acceptedAt }

// LimitPrice returns the limit price; zero for market orders.
func (o *Order) LimitPrice() decimal.Decimal {
	return o.Price.Decimal
}

// Validate reports why the order is malformed, wrapping ErrInvalidOrder. It
// needs no book state, so callers can check an order before routing it.
func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}
	if o.Side != BUY && o.Side != SELL {
		return fmt.Errorf("%w: order %s: unknown side %q", ErrInvalidOrder, o.ID, o.Side)
	}
	if !o.Volume.IsPositive() {
		return fmt.Errorf("%w: order %s: volume must be positive", ErrInvalidOrder, o.ID)
	}
	switch o.Type {
	case LIMIT:
		if !o.Price.Valid {
			return fmt.Errorf("%w: order %s: limit order without price", ErrInvalidOrder, o.ID)
		}
		if !o.Price.Decimal.IsPositive() {
			return fmt.Errorf("%w: order %s: limit price must be positive", ErrInvalidOrder, o.ID)
		}
	case MARKET:
		if o.Price.Valid {
			return fmt.Errorf("%w: order %s: market order must not carry a price", ErrInvalidOrder, o.ID)
		}
	default:
		return fmt.Errorf("%w: order %s: unknown type %q", ErrInvalidOrder, o.ID, o.Type)
	}
	return nil
}

// accepts reports whether a resting price on the opposite side is
// acceptable to this order.
func (o *Order) accepts(restingPrice decimal.Decimal) bool {
	if o.Type == MARKET {
		return true
	}
	if o.Side == BUY {
		return restingPrice.LessThanOrEqual(o.Price.Decimal)
	}
	return restingPrice.GreaterThanOrEqual(o.Price.Decimal)
}

func (o *Order) fill(qty decimal.Decimal) {
	o.remaining = o.remaining.Sub(qty)
	if o.remaining.IsZero() {
		o.status = StatusFilled
	} else {
		o.status = StatusPartiallyFilled
	}
}
