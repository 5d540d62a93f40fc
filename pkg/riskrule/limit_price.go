package riskrule

import (
	"fmt"

	"github.com/joripage/coinexchange/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// PriceBand bounds accepted limit prices. A zero bound is open.
type PriceBand struct {
	Floor decimal.Decimal
	Ceil  decimal.Decimal
}

type LimitPriceRule struct {
	bands map[string]PriceBand
}

func NewLimitPriceRule(bands map[string]PriceBand) *LimitPriceRule {
	return &LimitPriceRule{bands: bands}
}

func (r *LimitPriceRule) Check(order *orderbook.Order) error {
	if order.Type != orderbook.LIMIT {
		return nil
	}
	band, ok := r.bands[order.Symbol]
	if !ok {
		return nil
	}

	price := order.LimitPrice()
	if !band.Ceil.IsZero() && price.GreaterThan(band.Ceil) {
		return fmt.Errorf("%w: order %s: price %s above limit %s", orderbook.ErrInvalidOrder, order.ID, price, band.Ceil)
	}
	if !band.Floor.IsZero() && price.LessThan(band.Floor) {
		return fmt.Errorf("%w: order %s: price %s below limit %s", orderbook.ErrInvalidOrder, order.ID, price, band.Floor)
	}
	return nil
}
