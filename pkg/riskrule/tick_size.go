package riskrule

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joripage/coinexchange/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// TickSize is one price band: prices up to MaxPrice (zero = no limit) must
// be a multiple of Step.
type TickSize struct {
	MaxPrice decimal.Decimal `json:"maxPrice"`
	Step     decimal.Decimal `json:"step"`
}

// TickSizeRule holds the bands per symbol, lowest band first.
type TickSizeRule struct {
	Config map[string][]TickSize
}

func NewTickSizeRule(cfg map[string][]TickSize) *TickSizeRule {
	return &TickSizeRule{Config: cfg}
}

// NewTickSizeRuleFromFile loads bands from a JSON file keyed by symbol.
func NewTickSizeRuleFromFile(path string) (*TickSizeRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg map[string][]TickSize
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &TickSizeRule{Config: cfg}, nil
}

func (r *TickSizeRule) Check(order *orderbook.Order) error {
	if order.Type != orderbook.LIMIT {
		return nil
	}
	bands, ok := r.Config[order.Symbol]
	if !ok { // no config -> no rule
		return nil
	}

	price := order.LimitPrice()
	for _, band := range bands {
		if !band.MaxPrice.IsZero() && price.GreaterThan(band.MaxPrice) {
			continue
		}
		if band.Step.IsPositive() && !price.Mod(band.Step).IsZero() {
			return fmt.Errorf("%w: order %s: price %s is not a multiple of tick %s",
				orderbook.ErrInvalidOrder, order.ID, price, band.Step)
		}
		return nil
	}
	return nil
}
