// Package riskrule holds optional pre-trade checks applied by the exchange
// before an order reaches its book. A violation is an invalid order.
package riskrule

import "github.com/joripage/coinexchange/pkg/orderbook"

type RiskRule interface {
	Check(order *orderbook.Order) error
}

// Chain runs rules in order and stops at the first violation.
type Chain []RiskRule

func (c Chain) Check(order *orderbook.Order) error {
	for _, r := range c {
		if err := r.Check(order); err != nil {
			return err
		}
	}
	return nil
}
