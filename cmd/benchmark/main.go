package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/joripage/coinexchange/pkg/exchange"
	"github.com/joripage/coinexchange/pkg/journal"
	"github.com/joripage/coinexchange/pkg/logging"
	"github.com/joripage/coinexchange/pkg/orderbook"
	"github.com/joripage/coinexchange/pkg/pipeline"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const benchSymbol = "BTCLTC"

func main() {
	var (
		numOrders  int
		scenario   string
		bufferSize int
		logLevel   string
	)
	flag.IntVar(&numOrders, "orders", 5000, "orders per scenario")
	flag.StringVar(&scenario, "scenario", "all", "add-cancel | fill | random | all")
	flag.IntVar(&bufferSize, "buffer-size", pipeline.DefaultBufferSize, "pipeline ring size (power of two)")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.Parse()

	logger := logging.NewLogger(logging.ParseLevel(logLevel))
	defer logger.Sync()
	ctx := logging.NewRequestContext(context.Background())

	run := func(name string, fn func(*exchange.Exchange, int)) {
		journaler := journal.NewJournaler(journal.NoopStore{}, journal.Config{}, logger)
		p, err := pipeline.New(pipeline.Config{BufferSize: bufferSize}, logger)
		if err != nil {
			logger.Fatal(ctx, "pipeline", zap.Error(err))
		}
		if err := p.Initialize(pipeline.Consumer{Name: "journal", Handler: journaler}); err != nil {
			logger.Fatal(ctx, "pipeline init", zap.Error(err))
		}

		ex, err := exchange.New([]exchange.Instrument{
			{Symbol: "BTCLTC"}, {Symbol: "BTCUSD"}, {Symbol: "BTCDOGE"},
		}, exchange.Options{Publisher: p, Logger: logger})
		if err != nil {
			logger.Fatal(ctx, "exchange", zap.Error(err))
		}

		fmt.Printf("== %s (%d orders)\n", name, numOrders)
		start := time.Now()
		fn(ex, numOrders)

		drain := time.Now()
		if err := p.Shutdown(); err != nil {
			logger.Fatal(ctx, "pipeline shutdown", zap.Error(err))
		}
		fmt.Printf("pipeline drained %d events in %s, journaled %d\n", p.Cursor(), time.Since(drain), journaler.Written())
		fmt.Printf("overall %s\n\n", time.Since(start))
	}

	if scenario == "add-cancel" || scenario == "all" {
		run("add then cancel", addAndCancel)
	}
	if scenario == "fill" || scenario == "all" {
		run("sell limits filled by buy markets", fillWithMarkets)
	}
	if scenario == "random" || scenario == "all" {
		run("random limit flow", randomFlow)
	}
}

// addAndCancel places alternating bids around 1881-1889 and asks around
// 1885-1893, then cancels every id.
func addAndCancel(ex *exchange.Exchange, n int) {
	ctx := context.Background()
	ids := make([]string, 0, n)

	start := time.Now()
	for i := 0; i < n; i++ {
		side, delta := orderbook.SELL, int64(1884)
		if i%2 == 0 {
			side, delta = orderbook.BUY, 1880
		}
		id := fmt.Sprintf("%d", i+1)
		price := decimal.NewFromInt(delta + rand.Int63n(9) + 1)
		order := orderbook.NewLimitOrder(id, benchSymbol, side, price, decimal.NewFromInt(1), traderID())
		if _, err := ex.SubmitOrder(ctx, order); err != nil {
			fmt.Printf("order %s rejected: %v\n", id, err)
			continue
		}
		ids = append(ids, id)
	}
	fmt.Printf("orders added: %d in %s\n", len(ids), time.Since(start))
	printBook(ex)

	start = time.Now()
	canceled := 0
	for _, id := range ids {
		if ex.CancelOrder(ctx, benchSymbol, id) {
			canceled++
		}
	}
	fmt.Printf("orders canceled: %d in %s\n", canceled, time.Since(start))
	printBook(ex)
}

// fillWithMarkets rests n one-unit asks at 1885 and sweeps them with n
// one-unit market buys.
func fillWithMarkets(ex *exchange.Exchange, n int) {
	ctx := context.Background()
	one := decimal.NewFromInt(1)

	start := time.Now()
	for i := 0; i < n; i++ {
		o := orderbook.NewLimitOrder(fmt.Sprintf("%d", i+1), benchSymbol, orderbook.SELL, decimal.NewFromInt(1885), one, traderID())
		_, _ = ex.SubmitOrder(ctx, o)
	}
	fmt.Printf("sell orders placed: %d in %s\n", n, time.Since(start))
	printBook(ex)

	start = time.Now()
	for i := 0; i < n; i++ {
		o := orderbook.NewMarketOrder(fmt.Sprintf("%d", i+1+n), benchSymbol, orderbook.BUY, one, traderID())
		_, _ = ex.SubmitOrder(ctx, o)
	}
	fmt.Printf("buy orders placed: %d in %s\n", n, time.Since(start))
	printBook(ex)
}

func randomFlow(ex *exchange.Exchange, n int) {
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < n; i++ {
		side := orderbook.BUY
		if rand.Intn(2) == 0 {
			side = orderbook.SELL
		}
		// cents between 100.00 and 200.00
		price := decimal.New(10000+rand.Int63n(10001), -2)
		qty := decimal.NewFromInt(rand.Int63n(100) + 1)
		_, _ = ex.SubmitOrder(ctx, orderbook.NewLimitOrder(fmt.Sprintf("ORD-%06d", i+1), benchSymbol, side, price, qty, traderID()))
	}
	elapsed := time.Since(start)
	printBook(ex)
	fmt.Printf("throughput %.0f orders/s\n", float64(n)/elapsed.Seconds())
}

func printBook(ex *exchange.Exchange) {
	snap, _ := ex.Snapshot(benchSymbol)
	listener, _ := ex.TradeListener(benchSymbol)
	fmt.Printf("bid levels: %d, ask levels: %d, trades: %d, traded volume: %s\n",
		len(snap.Bids), len(snap.Asks), listener.Count(), listener.TotalVolume())
}

func traderID() string {
	return fmt.Sprintf("%d", rand.Intn(99)+1)
}
