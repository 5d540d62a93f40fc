package orderbook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/coinexchange/pkg/event"
	"github.com/joripage/coinexchange/pkg/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Publisher is the producer side of the output pipeline.
type Publisher interface {
	Publish(payload []byte) (uint64, error)
}

type EngineConfig struct {
	Publisher Publisher   // nil disables publication
	Codec     event.Codec // defaults to event.JSONCodec
	Logger    *logging.Logger
	Clock     func() time.Time
	TradeID   func() string // defaults to uuid.NewString
}

// MatchingEngine holds no book state. It walks the opposite side of the
// book it is handed and reports what happened to its publisher and trade
// callbacks.
type MatchingEngine struct {
	publisher Publisher
	codec     event.Codec
	logger    *logging.Logger
	clock     func() time.Time
	tradeID   func() string

	callbacks []func([]Trade)
}

func NewMatchingEngine(cfg EngineConfig) *MatchingEngine {
	e := &MatchingEngine{
		publisher: cfg.Publisher,
		codec:     cfg.Codec,
		logger:    logging.OrNop(cfg.Logger),
		clock:     cfg.Clock,
		tradeID:   cfg.TradeID,
	}
	if e.codec == nil {
		e.codec = event.JSONCodec{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.tradeID == nil {
		e.tradeID = uuid.NewString
	}
	return e
}

// RegisterTradeCallback adds fn to the observers notified after every
// AddOrder that produced trades. Callbacks run on the matching goroutine.
func (e *MatchingEngine) RegisterTradeCallback(fn func([]Trade)) {
	e.callbacks = append(e.callbacks, fn)
}

func (e *MatchingEngine) now() time.Time {
	return e.clock().UTC()
}

// match fills taker against the opposite side of b until it is filled, the
// side is exhausted or the best opposite price is no longer acceptable.
func (e *MatchingEngine) match(b *LimitOrderBook, taker *Order) []Trade {
	var trades []Trade
	opposite := b.sideOf(taker.Side.opposite())

	for taker.remaining.IsPositive() {
		lvl := opposite.best()
		if lvl == nil || !taker.accepts(lvl.price) {
			break
		}

		maker := lvl.head()
		qty := decimal.Min(taker.remaining, maker.remaining)

		taker.fill(qty)
		maker.fill(qty)
		lvl.reduce(qty)

		trades = append(trades, e.newTrade(b, taker, maker, lvl.price, qty))

		if maker.remaining.IsZero() {
			lvl.popHead()
			opposite.count--
			delete(b.orders, maker.ID)
			b.terminal[maker.ID] = struct{}{}
			opposite.dropIfEmpty(lvl)
		}
	}
	return trades
}

func (e *MatchingEngine) newTrade(b *LimitOrderBook, taker, maker *Order, price, qty decimal.Decimal) Trade {
	t := Trade{
		ID:         e.tradeID(),
		Seq:        b.tradeSeq.Next(),
		Symbol:     b.symbol,
		TakerSide:  taker.Side,
		Price:      price,
		Volume:     qty,
		ExecutedAt: e.now(),
	}
	buy, sell := taker, maker
	if taker.Side == SELL {
		buy, sell = maker, taker
	}
	t.BuyOrderID, t.BuyTraderID = buy.ID, buy.TraderID
	t.SellOrderID, t.SellTraderID = sell.ID, sell.TraderID
	return t
}

func (e *MatchingEngine) emitAccepted(symbol string, o *Order, trades []Trade) {
	if len(trades) > 0 {
		for _, cb := range e.callbacks {
			cb(append([]Trade(nil), trades...))
		}
	}
	if e.publisher == nil {
		return
	}

	e.publish(&event.Event{
		Kind:      event.KindOrderAccepted,
		Symbol:    symbol,
		Seq:       o.seq,
		OrderID:   o.ID,
		TraderID:  o.TraderID,
		Side:      string(o.Side),
		OrderType: string(o.Type),
		Price:     o.Price.Decimal,
		Volume:    o.Volume,
		Remaining: o.remaining,
		Timestamp: o.acceptedAt,
	})
	for i := range trades {
		t := &trades[i]
		e.publish(&event.Event{
			Kind:         event.KindTradeExecuted,
			Symbol:       symbol,
			Seq:          t.Seq,
			Side:         string(t.TakerSide),
			Price:        t.Price,
			Volume:       t.Volume,
			TradeID:      t.ID,
			BuyOrderID:   t.BuyOrderID,
			SellOrderID:  t.SellOrderID,
			BuyTraderID:  t.BuyTraderID,
			SellTraderID: t.SellTraderID,
			Timestamp:    t.ExecutedAt,
		})
	}
}

func (e *MatchingEngine) emitCanceled(symbol string, o *Order, canceled decimal.Decimal) {
	if e.publisher == nil {
		return
	}
	e.publish(&event.Event{
		Kind:      event.KindOrderCanceled,
		Symbol:    symbol,
		Seq:       o.seq,
		OrderID:   o.ID,
		TraderID:  o.TraderID,
		Side:      string(o.Side),
		OrderType: string(o.Type),
		Price:     o.Price.Decimal,
		Volume:    canceled,
		Timestamp: e.now(),
	})
}

// publish failures are the pipeline's problem; the book state stands.
func (e *MatchingEngine) publish(ev *event.Event) {
	payload, err := e.codec.Encode(ev)
	if err != nil {
		e.logger.Error(context.Background(), "encode event",
			zap.String("kind", ev.Kind.String()), zap.String("symbol", ev.Symbol), zap.Error(err))
		return
	}
	if _, err := e.publisher.Publish(payload); err != nil {
		e.logger.Error(context.Background(), "publish event",
			zap.String("kind", ev.Kind.String()), zap.String("symbol", ev.Symbol), zap.Error(err))
	}
}
