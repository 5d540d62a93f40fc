// Package exchange routes orders to one isolated order book per instrument.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/coinexchange/pkg/event"
	"github.com/joripage/coinexchange/pkg/logging"
	"github.com/joripage/coinexchange/pkg/orderbook"
	"github.com/joripage/coinexchange/pkg/riskrule"
	"go.uber.org/zap"
)

type Instrument struct {
	Symbol string
	Rules  []riskrule.RiskRule
}

type Options struct {
	Publisher orderbook.Publisher // shared by every engine; nil disables events
	Codec     event.Codec
	Logger    *logging.Logger
	Clock     func() time.Time
}

// instrument is the book, engine and listener of one symbol. mu serializes
// every call into the book; nothing else is shared between instruments.
type instrument struct {
	mu       sync.Mutex
	book     *orderbook.LimitOrderBook
	listener *orderbook.TradeListener
	rules    riskrule.Chain
}

type Exchange struct {
	instruments map[string]*instrument
	logger      *logging.Logger

	totalMatchCount atomic.Int64
	rejected        atomic.Int64
}

// Stats are process-wide counters across instruments.
type Stats struct {
	Instruments int
	Trades      int64
	Rejected    int64
}

// BookSnapshot is a point-in-time copy of one instrument's book.
type BookSnapshot struct {
	Symbol string
	Bids   []orderbook.LevelSnapshot
	Asks   []orderbook.LevelSnapshot
}

// New builds one independent book per instrument. The instrument set is
// fixed for the lifetime of the Exchange.
func New(instruments []Instrument, opts Options) (*Exchange, error) {
	logger := logging.OrNop(opts.Logger).Named("exchange")
	ex := &Exchange{
		instruments: make(map[string]*instrument, len(instruments)),
		logger:      logger,
	}

	for _, in := range instruments {
		if in.Symbol == "" {
			return nil, errors.New("exchange: instrument without symbol")
		}
		if _, ok := ex.instruments[in.Symbol]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInstrument, in.Symbol)
		}

		engine := orderbook.NewMatchingEngine(orderbook.EngineConfig{
			Publisher: opts.Publisher,
			Codec:     opts.Codec,
			Logger:    logger.With(zap.String("symbol", in.Symbol)),
			Clock:     opts.Clock,
		})
		listener := orderbook.NewTradeListener()
		listener.Attach(engine)
		engine.RegisterTradeCallback(func(trades []orderbook.Trade) {
			ex.totalMatchCount.Add(int64(len(trades)))
		})

		ex.instruments[in.Symbol] = &instrument{
			book:     orderbook.NewLimitOrderBook(in.Symbol, engine),
			listener: listener,
			rules:    riskrule.Chain(in.Rules),
		}
	}

	logger.Info(context.Background(), "exchange ready", zap.Strings("symbols", ex.Symbols()))
	return ex, nil
}

func (ex *Exchange) lookup(symbol string) (*instrument, error) {
	in, ok := ex.instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return in, nil
}

// SubmitOrder routes order to its instrument, validates it, applies the
// instrument's rules and matches it. Trades are returned in execution order.
func (ex *Exchange) SubmitOrder(ctx context.Context, order orderbook.Order) ([]orderbook.Trade, error) {
	in, err := ex.lookup(order.Symbol)
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	// malformed orders never reach the rules
	if err := order.Validate(); err != nil {
		ex.reject(ctx, order, err)
		return nil, err
	}
	if err := in.rules.Check(&order); err != nil {
		ex.reject(ctx, order, err)
		return nil, err
	}
	trades, err := in.book.AddOrder(order)
	if err != nil {
		ex.reject(ctx, order, err)
		return nil, err
	}
	return trades, nil
}

func (ex *Exchange) reject(ctx context.Context, order orderbook.Order, err error) {
	ex.rejected.Add(1)
	ex.logger.Debug(ctx, "order rejected",
		zap.String("symbol", order.Symbol), zap.String("order_id", order.ID), zap.Error(err))
}

// CancelOrder reports whether a resting order was removed. Unknown symbols
// and ids are misses, not errors.
func (ex *Exchange) CancelOrder(_ context.Context, symbol, orderID string) bool {
	in, err := ex.lookup(symbol)
	if err != nil {
		return false
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	return in.book.CancelOrder(orderID)
}

func (ex *Exchange) Snapshot(symbol string) (BookSnapshot, error) {
	in, err := ex.lookup(symbol)
	if err != nil {
		return BookSnapshot{}, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	return BookSnapshot{Symbol: symbol, Bids: in.book.Bids(), Asks: in.book.Asks()}, nil
}

// Depth returns up to n aggregated levels per side.
func (ex *Exchange) Depth(symbol string, n int) (BookSnapshot, error) {
	in, err := ex.lookup(symbol)
	if err != nil {
		return BookSnapshot{}, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	bids, asks := in.book.Depth(n)
	return BookSnapshot{Symbol: symbol, Bids: bids, Asks: asks}, nil
}

// Order looks up a resting order.
func (ex *Exchange) Order(symbol, orderID string) (orderbook.Order, bool) {
	in, err := ex.lookup(symbol)
	if err != nil {
		return orderbook.Order{}, false
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	return in.book.Order(orderID)
}

func (ex *Exchange) TradeListener(symbol string) (*orderbook.TradeListener, error) {
	in, err := ex.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return in.listener, nil
}

// WithBook runs fn with exclusive access to the raw book of symbol.
func (ex *Exchange) WithBook(symbol string, fn func(*orderbook.LimitOrderBook)) error {
	in, err := ex.lookup(symbol)
	if err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	fn(in.book)
	return nil
}

// Symbols returns the instrument symbols in sorted order.
func (ex *Exchange) Symbols() []string {
	out := make([]string, 0, len(ex.instruments))
	for s := range ex.instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (ex *Exchange) Stats() Stats {
	return Stats{
		Instruments: len(ex.instruments),
		Trades:      ex.totalMatchCount.Load(),
		Rejected:    ex.rejected.Load(),
	}
}
