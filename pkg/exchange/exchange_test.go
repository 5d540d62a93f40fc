package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/joripage/coinexchange/pkg/event"
	"github.com/joripage/coinexchange/pkg/journal"
	"github.com/joripage/coinexchange/pkg/orderbook"
	"github.com/joripage/coinexchange/pkg/pipeline"
	"github.com/joripage/coinexchange/pkg/riskrule"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func instruments(symbols ...string) []Instrument {
	out := make([]Instrument, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, Instrument{Symbol: s})
	}
	return out
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(instruments("BTCUSD", "BTCLTC", "BTCUSD"), Options{})
	require.ErrorIs(t, err, ErrDuplicateInstrument)

	ex, err := New(instruments("BTCUSD", "BTCLTC", "BTCDOGE"), Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"BTCDOGE", "BTCLTC", "BTCUSD"}, ex.Symbols())
}

func TestUnknownInstrument(t *testing.T) {
	ex, err := New(instruments("BTCUSD"), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("1", "ETHUSD", orderbook.BUY, dec("1"), dec("1"), "t"))
	require.ErrorIs(t, err, ErrUnknownInstrument)

	_, err = ex.Snapshot("ETHUSD")
	require.ErrorIs(t, err, ErrUnknownInstrument)
	_, err = ex.TradeListener("ETHUSD")
	require.ErrorIs(t, err, ErrUnknownInstrument)
	require.False(t, ex.CancelOrder(ctx, "ETHUSD", "1"))
}

func TestSubmitAndCancel(t *testing.T) {
	ex, err := New(instruments("BTCUSD"), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("S1", "BTCUSD", orderbook.SELL, dec("1885"), dec("1"), "alice"))
	require.NoError(t, err)
	trades, err := ex.SubmitOrder(ctx, orderbook.NewMarketOrder("B1", "BTCUSD", orderbook.BUY, dec("1"), "bob"))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.True(t, trades[0].Price.Equal(dec("1885")))

	snap, err := ex.Snapshot("BTCUSD")
	require.NoError(t, err)
	require.Empty(t, snap.Bids)
	require.Empty(t, snap.Asks)

	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("S2", "BTCUSD", orderbook.SELL, dec("100"), dec("1"), "alice"))
	require.NoError(t, err)
	_, ok := ex.Order("BTCUSD", "S2")
	require.True(t, ok)
	require.True(t, ex.CancelOrder(ctx, "BTCUSD", "S2"))
	require.False(t, ex.CancelOrder(ctx, "BTCUSD", "S2"))

	listener, err := ex.TradeListener("BTCUSD")
	require.NoError(t, err)
	require.Equal(t, 1, listener.Count())
	require.Equal(t, int64(1), ex.Stats().Trades)
}

func TestInvalidOrderLeavesBookUnchanged(t *testing.T) {
	ex, err := New(instruments("BTCUSD"), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("S1", "BTCUSD", orderbook.SELL, dec("10"), dec("1"), "a"))
	require.NoError(t, err)

	bad := orderbook.NewLimitOrder("B1", "BTCUSD", orderbook.BUY, dec("10"), dec("1"), "b")
	bad.Price = decimal.NullDecimal{}
	trades, err := ex.SubmitOrder(ctx, bad)
	require.ErrorIs(t, err, orderbook.ErrInvalidOrder)
	require.Empty(t, trades)

	snap, _ := ex.Snapshot("BTCUSD")
	require.Len(t, snap.Asks, 1)
	require.Empty(t, snap.Bids)
	listener, _ := ex.TradeListener("BTCUSD")
	require.Zero(t, listener.Count())
	require.Equal(t, int64(1), ex.Stats().Rejected)
}

func TestInstrumentsAreIsolated(t *testing.T) {
	ex, err := New(instruments("BTCUSD", "BTCLTC"), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	// the same id may live in two books
	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("O1", "BTCUSD", orderbook.SELL, dec("10"), dec("1"), "a"))
	require.NoError(t, err)
	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("O1", "BTCLTC", orderbook.SELL, dec("10"), dec("1"), "a"))
	require.NoError(t, err)

	trades, err := ex.SubmitOrder(ctx, orderbook.NewMarketOrder("B1", "BTCLTC", orderbook.BUY, dec("5"), "b"))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	usd, _ := ex.Snapshot("BTCUSD")
	require.Len(t, usd.Asks, 1)
	ltc, _ := ex.Snapshot("BTCLTC")
	require.Empty(t, ltc.Asks)

	usdTrades, _ := ex.TradeListener("BTCUSD")
	require.Zero(t, usdTrades.Count())
}

func TestRulesRejectAsInvalidOrder(t *testing.T) {
	rules := []riskrule.RiskRule{
		riskrule.NewTickSizeRule(map[string][]riskrule.TickSize{"BTCUSD": {{Step: dec("0.5")}}}),
		riskrule.NewLimitPriceRule(map[string]riskrule.PriceBand{"BTCUSD": {Floor: dec("1"), Ceil: dec("1000")}}),
	}
	ex, err := New([]Instrument{{Symbol: "BTCUSD", Rules: rules}}, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("1", "BTCUSD", orderbook.BUY, dec("10.25"), dec("1"), "a"))
	require.ErrorIs(t, err, orderbook.ErrInvalidOrder)
	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("2", "BTCUSD", orderbook.BUY, dec("1000.5"), dec("1"), "a"))
	require.ErrorIs(t, err, orderbook.ErrInvalidOrder)
	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("3", "BTCUSD", orderbook.BUY, dec("10.5"), dec("1"), "a"))
	require.NoError(t, err)

	// a rejected id was never admitted and stays usable
	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("1", "BTCUSD", orderbook.BUY, dec("10"), dec("1"), "a"))
	require.NoError(t, err)
}

type outageRule struct{ calls int }

func (r *outageRule) Check(*orderbook.Order) error {
	r.calls++
	return errors.New("balance store unavailable")
}

func TestMalformedOrderSkipsRules(t *testing.T) {
	rule := &outageRule{}
	ex, err := New([]Instrument{{Symbol: "BTCUSD", Rules: []riskrule.RiskRule{rule}}}, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	noPrice := orderbook.Order{ID: "1", Symbol: "BTCUSD", Side: orderbook.BUY, Type: orderbook.LIMIT, Volume: dec("1"), TraderID: "a"}
	_, err = ex.SubmitOrder(ctx, noPrice)
	require.ErrorIs(t, err, orderbook.ErrInvalidOrder)
	_, err = ex.SubmitOrder(ctx, orderbook.NewMarketOrder("2", "BTCUSD", orderbook.SELL, dec("0"), "a"))
	require.ErrorIs(t, err, orderbook.ErrInvalidOrder)
	require.Zero(t, rule.calls)

	// a well-formed order does reach the rule and gets its error back
	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("3", "BTCUSD", orderbook.BUY, dec("10"), dec("1"), "a"))
	require.Error(t, err)
	require.NotErrorIs(t, err, orderbook.ErrInvalidOrder)
	require.Equal(t, 1, rule.calls)
	require.Equal(t, int64(3), ex.Stats().Rejected)
}

func TestConcurrentSubmitters(t *testing.T) {
	symbols := []string{"BTCUSD", "BTCLTC", "BTCDOGE"}
	ex, err := New(instruments(symbols...), Options{})
	require.NoError(t, err)
	ctx := context.Background()

	const perWorker = 200
	var wg sync.WaitGroup
	for _, sym := range symbols {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(sym string, w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					side := orderbook.BUY
					if (i+w)%2 == 0 {
						side = orderbook.SELL
					}
					id := fmt.Sprintf("%s-%d-%d", sym, w, i)
					if _, err := ex.SubmitOrder(ctx, orderbook.NewLimitOrder(id, sym, side, dec("100"), dec("1"), "t")); err != nil {
						t.Errorf("submit %s: %v", id, err)
						return
					}
				}
			}(sym, w)
		}
	}
	wg.Wait()

	for _, sym := range symbols {
		listener, _ := ex.TradeListener(sym)
		snap, _ := ex.Snapshot(sym)
		resting := 0
		for _, lvl := range append(snap.Bids, snap.Asks...) {
			resting += len(lvl.Orders)
		}
		// every order is one unit at one price: each trade consumes two
		require.Equal(t, 4*perWorker, 2*listener.Count()+resting, sym)
		require.False(t, len(snap.Bids) > 0 && len(snap.Asks) > 0, "crossed book on %s", sym)
	}
}

func TestEventsFlowThroughPipeline(t *testing.T) {
	store := journal.NewMemoryStore()
	j := journal.NewJournaler(store, journal.Config{BatchSize: 8}, nil)

	p, err := pipeline.New(pipeline.Config{BufferSize: 4}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(pipeline.Consumer{Name: "journal", Handler: j}))

	ex, err := New(instruments("BTCUSD", "BTCLTC"), Options{Publisher: p})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		sym := "BTCUSD"
		if i%2 == 1 {
			sym = "BTCLTC"
		}
		_, err := ex.SubmitOrder(ctx, orderbook.NewLimitOrder(fmt.Sprintf("S%d", i), sym, orderbook.SELL, dec("10"), dec("1"), "a"))
		require.NoError(t, err)
	}
	_, err = ex.SubmitOrder(ctx, orderbook.NewMarketOrder("B1", "BTCUSD", orderbook.BUY, dec("2"), "b"))
	require.NoError(t, err)
	require.True(t, ex.CancelOrder(ctx, "BTCLTC", "S1"))

	require.NoError(t, p.Shutdown())

	var kinds []event.Kind
	codec := event.JSONCodec{}
	require.NoError(t, store.Replay(ctx, func(r journal.Record) error {
		ev, err := codec.Decode(r.Payload)
		if err != nil {
			return err
		}
		kinds = append(kinds, ev.Kind)
		return nil
	}))

	// 10 rests, 1 taker accepted, 2 trades, 1 cancel
	require.Len(t, kinds, 14)
	require.Equal(t, event.KindOrderAccepted, kinds[10])
	require.Equal(t, event.KindTradeExecuted, kinds[11])
	require.Equal(t, event.KindTradeExecuted, kinds[12])
	require.Equal(t, event.KindOrderCanceled, kinds[13])
	require.Zero(t, j.Failures())
}

func TestPublishAfterShutdownDoesNotBreakMatching(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{BufferSize: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Initialize())
	require.NoError(t, p.Shutdown())

	ex, err := New(instruments("BTCUSD"), Options{Publisher: p})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ex.SubmitOrder(ctx, orderbook.NewLimitOrder("S1", "BTCUSD", orderbook.SELL, dec("10"), dec("1"), "a"))
	require.NoError(t, err)
	trades, err := ex.SubmitOrder(ctx, orderbook.NewMarketOrder("B1", "BTCUSD", orderbook.BUY, dec("1"), "b"))
	require.NoError(t, err)
	require.Len(t, trades, 1)
}
