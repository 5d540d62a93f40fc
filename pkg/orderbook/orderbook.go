// Package orderbook implements the per-instrument limit order book and the
// price-time priority matching engine that runs against it.
//
// A LimitOrderBook is single-writer: AddOrder and CancelOrder must be
// serialized by the caller (the exchange holds one mutex per instrument).
// Nothing inside the book locks.
package orderbook

import (
	"fmt"

	"github.com/joripage/coinexchange/pkg/sequence"
	"github.com/shopspring/decimal"
)

type LimitOrderBook struct {
	symbol string

	bids *bookSide
	asks *bookSide

	orders   map[string]*Order   // resting orders by id
	terminal map[string]struct{} // filled or canceled ids, never reusable

	orderSeq *sequence.Sequencer
	tradeSeq *sequence.Sequencer

	engine *MatchingEngine
}

// NewLimitOrderBook creates an empty book matched by engine. A nil engine
// gets a default one that publishes nothing.
func NewLimitOrderBook(symbol string, engine *MatchingEngine) *LimitOrderBook {
	if engine == nil {
		engine = NewMatchingEngine(EngineConfig{})
	}
	return &LimitOrderBook{
		symbol:   symbol,
		bids:     newBookSide(BUY),
		asks:     newBookSide(SELL),
		orders:   make(map[string]*Order),
		terminal: make(map[string]struct{}),
		orderSeq: sequence.New(0),
		tradeSeq: sequence.New(0),
		engine:   engine,
	}
}

func (b *LimitOrderBook) Symbol() string          { return b.symbol }
func (b *LimitOrderBook) Engine() *MatchingEngine { return b.engine }

// AddOrder validates the order, matches it against the opposite side and
// rests any limit remainder. Market remainders are discarded. On error the
// book is untouched and no trade is produced.
func (b *LimitOrderBook) AddOrder(order Order) ([]Trade, error) {
	if err := b.admit(&order); err != nil {
		return nil, err
	}

	o := &order
	o.remaining = o.Volume
	o.status = StatusNew
	o.seq = b.orderSeq.Next()
	o.acceptedAt = b.engine.now()

	trades := b.engine.match(b, o)

	switch {
	case o.remaining.IsZero():
		b.terminal[o.ID] = struct{}{}
	case o.Type == LIMIT:
		b.sideOf(o.Side).insert(o)
		b.orders[o.ID] = o
	default:
		// unfilled market remainder never rests
		o.status = StatusCanceled
		b.terminal[o.ID] = struct{}{}
	}

	b.engine.emitAccepted(b.symbol, o, trades)
	return trades, nil
}

func (b *LimitOrderBook) admit(o *Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.Symbol == "" {
		o.Symbol = b.symbol
	} else if o.Symbol != b.symbol {
		return fmt.Errorf("%w: order %s: symbol %s routed to book %s", ErrInvalidOrder, o.ID, o.Symbol, b.symbol)
	}
	if _, ok := b.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s is already resting", ErrInvalidOrder, o.ID)
	}
	if _, ok := b.terminal[o.ID]; ok {
		return fmt.Errorf("%w: order %s is filled or canceled", ErrInvalidOrder, o.ID)
	}
	return nil
}

// CancelOrder removes a resting order. It reports false when the id is
// unknown, already filled or already canceled.
func (b *LimitOrderBook) CancelOrder(orderID string) bool {
	o, ok := b.orders[orderID]
	if !ok {
		return false
	}
	if !b.sideOf(o.Side).remove(o) {
		return false
	}
	delete(b.orders, orderID)
	b.terminal[orderID] = struct{}{}

	canceled := o.remaining
	o.remaining = decimal.Zero
	o.status = StatusCanceled
	b.engine.emitCanceled(b.symbol, o, canceled)
	return true
}

func (b *LimitOrderBook) sideOf(s Side) *bookSide {
	if s == BUY {
		return b.bids
	}
	return b.asks
}

// ---- read accessors; all return copies ----

// BestBid returns the highest bid level, if any.
func (b *LimitOrderBook) BestBid() (LevelSnapshot, bool) {
	return best(b.bids)
}

// BestAsk returns the lowest ask level, if any.
func (b *LimitOrderBook) BestAsk() (LevelSnapshot, bool) {
	return best(b.asks)
}

func best(s *bookSide) (LevelSnapshot, bool) {
	lvl := s.best()
	if lvl == nil {
		return LevelSnapshot{}, false
	}
	return lvl.snapshot(true), true
}

// Bids returns every bid level, best (highest) first, with its orders.
func (b *LimitOrderBook) Bids() []LevelSnapshot {
	return b.bids.snapshot(0, true)
}

// Asks returns every ask level, best (lowest) first, with its orders.
func (b *LimitOrderBook) Asks() []LevelSnapshot {
	return b.asks.snapshot(0, true)
}

// Depth returns up to n aggregated levels per side without order detail.
func (b *LimitOrderBook) Depth(n int) (bids, asks []LevelSnapshot) {
	return b.bids.snapshot(n, false), b.asks.snapshot(n, false)
}

// Order returns a copy of a resting order.
func (b *LimitOrderBook) Order(orderID string) (Order, bool) {
	o, ok := b.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (b *LimitOrderBook) BidCount() int { return b.bids.count }
func (b *LimitOrderBook) AskCount() int { return b.asks.count }

// Spread returns best ask minus best bid when both sides are populated.
func (b *LimitOrderBook) Spread() (decimal.Decimal, bool) {
	bid, ask := b.bids.best(), b.asks.best()
	if bid == nil || ask == nil {
		return decimal.Zero, false
	}
	return ask.price.Sub(bid.price), true
}
