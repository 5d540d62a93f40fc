package riskrule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joripage/coinexchange/pkg/balance"
	"github.com/joripage/coinexchange/pkg/orderbook"
)

// CurrencyPair names the currencies an instrument trades: sellers give
// Base, buyers pay Quote.
type CurrencyPair struct {
	Base  string
	Quote string
}

// BalanceRule rejects orders the trader cannot cover from their available
// balance. The trader id is the account id. Market buys have no price to
// cost and only need a positive quote balance.
type BalanceRule struct {
	repo    balance.Repository
	pairs   map[string]CurrencyPair
	timeout time.Duration
}

func NewBalanceRule(repo balance.Repository, pairs map[string]CurrencyPair, timeout time.Duration) *BalanceRule {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &BalanceRule{repo: repo, pairs: pairs, timeout: timeout}
}

func (r *BalanceRule) Check(order *orderbook.Order) error {
	pair, ok := r.pairs[order.Symbol]
	if !ok {
		return nil
	}

	currency, need := pair.Base, order.Volume
	if order.Side == orderbook.BUY {
		currency = pair.Quote
		need = order.LimitPrice().Mul(order.Volume)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	b, err := r.repo.GetBalanceByCurrencyAndAccountID(ctx, currency, order.TraderID)
	if errors.Is(err, balance.ErrBalanceNotFound) {
		return fmt.Errorf("%w: order %s: account %s holds no %s", orderbook.ErrInvalidOrder, order.ID, order.TraderID, currency)
	}
	if err != nil {
		return fmt.Errorf("balance check for order %s: %w", order.ID, err)
	}

	if order.Type == orderbook.MARKET && order.Side == orderbook.BUY {
		if !b.Available.IsPositive() {
			return fmt.Errorf("%w: order %s: no %s available", orderbook.ErrInvalidOrder, order.ID, currency)
		}
		return nil
	}
	if b.Available.LessThan(need) {
		return fmt.Errorf("%w: order %s: needs %s %s, available %s",
			orderbook.ErrInvalidOrder, order.ID, need, currency, b.Available)
	}
	return nil
}

