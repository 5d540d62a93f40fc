package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/joripage/coinexchange/pkg/exchange"
	"github.com/joripage/coinexchange/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// command is one line of the order feed.
//
//	{"op":"submit","id":"1","symbol":"BTCUSD","side":"BUY","type":"LIMIT","price":"100","volume":"2","trader":"alice"}
//	{"op":"cancel","symbol":"BTCUSD","id":"1"}
//	{"op":"depth","symbol":"BTCUSD","levels":5}
type command struct {
	Op     string              `json:"op"`
	ID     string              `json:"id"`
	Symbol string              `json:"symbol"`
	Side   orderbook.Side      `json:"side"`
	Type   orderbook.OrderType `json:"type"`
	Price  decimal.NullDecimal `json:"price"`
	Volume decimal.Decimal     `json:"volume"`
	Trader string              `json:"trader"`
	Levels int                 `json:"levels"`
}

type level struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	Orders int             `json:"orders"`
}

type result struct {
	Op       string  `json:"op"`
	ID       string  `json:"id,omitempty"`
	Symbol   string  `json:"symbol,omitempty"`
	Error    string  `json:"error,omitempty"`
	Trades   []trade `json:"trades,omitempty"`
	Canceled *bool   `json:"canceled,omitempty"`
	Bids     []level `json:"bids,omitempty"`
	Asks     []level `json:"asks,omitempty"`
}

type trade struct {
	ID     string          `json:"id"`
	Buy    string          `json:"buy"`
	Sell   string          `json:"sell"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// runFeed applies every command read from r and writes one JSON result
// line per command to w. Malformed lines are reported and skipped.
func runFeed(ctx context.Context, ex *exchange.Exchange, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var cmd command
		var res result
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			res = result{Op: "invalid", Error: err.Error()}
		} else {
			res = apply(ctx, ex, cmd)
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func apply(ctx context.Context, ex *exchange.Exchange, cmd command) result {
	res := result{Op: cmd.Op, ID: cmd.ID, Symbol: cmd.Symbol}

	switch cmd.Op {
	case "submit":
		order := orderbook.Order{
			ID:       cmd.ID,
			Symbol:   cmd.Symbol,
			Side:     orderbook.Side(strings.ToUpper(string(cmd.Side))),
			Type:     orderbook.OrderType(strings.ToUpper(string(cmd.Type))),
			Price:    cmd.Price,
			Volume:   cmd.Volume,
			TraderID: cmd.Trader,
		}
		trades, err := ex.SubmitOrder(ctx, order)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		for _, t := range trades {
			res.Trades = append(res.Trades, trade{ID: t.ID, Buy: t.BuyOrderID, Sell: t.SellOrderID, Price: t.Price, Volume: t.Volume})
		}
	case "cancel":
		ok := ex.CancelOrder(ctx, cmd.Symbol, cmd.ID)
		res.Canceled = &ok
	case "depth":
		snap, err := ex.Depth(cmd.Symbol, cmd.Levels)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Bids, res.Asks = levels(snap.Bids), levels(snap.Asks)
	default:
		res.Error = fmt.Sprintf("unknown op %q", cmd.Op)
	}
	return res
}

func levels(in []orderbook.LevelSnapshot) []level {
	out := make([]level, 0, len(in))
	for _, l := range in {
		out = append(out, level{Price: l.Price, Volume: l.Volume, Orders: len(l.Orders)})
	}
	return out
}

