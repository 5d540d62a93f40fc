package riskrule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joripage/coinexchange/pkg/balance"
	"github.com/joripage/coinexchange/pkg/orderbook"
	"github.com/shopspring/decimal"
)

type balances map[string]decimal.Decimal // "account/currency" -> available

func (b balances) GetBalanceByID(context.Context, int64) (*balance.Balance, error) {
	return nil, balance.ErrBalanceNotFound
}

func (b balances) GetBalanceByCurrencyAndAccountID(_ context.Context, currency, accountID string) (*balance.Balance, error) {
	if accountID == "broken" {
		return nil, errors.New("connection reset")
	}
	v, ok := b[accountID+"/"+currency]
	if !ok {
		return nil, balance.ErrBalanceNotFound
	}
	return &balance.Balance{Currency: currency, AccountID: accountID, Available: v}, nil
}

func (b balances) GetAllCurrencyBalances(context.Context, string) ([]*balance.Balance, error) {
	return nil, nil
}

func TestBalanceRule(t *testing.T) {
	repo := balances{
		"alice/BTC": decimal.NewFromInt(2),
		"alice/USD": decimal.NewFromInt(1000),
		"bob/USD":   decimal.Zero,
	}
	rule := NewBalanceRule(repo, map[string]CurrencyPair{"BTCUSD": {Base: "BTC", Quote: "USD"}}, time.Second)

	d := decimal.RequireFromString
	order := func(trader string, side orderbook.Side, price, vol string) *orderbook.Order {
		o := orderbook.NewLimitOrder("O", "BTCUSD", side, d(price), d(vol), trader)
		return &o
	}
	marketBuy := func(trader string) *orderbook.Order {
		o := orderbook.NewMarketOrder("M", "BTCUSD", orderbook.BUY, d("1"), trader)
		return &o
	}

	tests := []struct {
		name    string
		order   *orderbook.Order
		invalid bool
		fails   bool
	}{
		{"sell covered", order("alice", orderbook.SELL, "100", "2"), false, false},
		{"sell short", order("alice", orderbook.SELL, "100", "2.5"), true, true},
		{"buy covered", order("alice", orderbook.BUY, "500", "2"), false, false},
		{"buy too expensive", order("alice", orderbook.BUY, "500", "2.01"), true, true},
		{"unknown account", order("carol", orderbook.BUY, "1", "1"), true, true},
		{"market buy without funds", marketBuy("bob"), true, true},
		{"market buy with funds", marketBuy("alice"), false, false},
		{"repository down", order("broken", orderbook.SELL, "1", "1"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Check(tt.order)
			if (err != nil) != tt.fails {
				t.Fatalf("expected failure=%v, got %v", tt.fails, err)
			}
			if errors.Is(err, orderbook.ErrInvalidOrder) != tt.invalid {
				t.Fatalf("expected invalid=%v, got %v", tt.invalid, err)
			}
		})
	}

	other := orderbook.NewLimitOrder("X", "ETHUSD", orderbook.BUY, d("1"), d("1"), "nobody")
	if err := rule.Check(&other); err != nil {
		t.Fatalf("unconfigured symbols are not checked: %v", err)
	}
}
