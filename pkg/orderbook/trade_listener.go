package orderbook

import (
	"sync"

	"github.com/shopspring/decimal"
)

// TradeListener records every trade its engine reports. It is append-only
// and safe to read while the engine is matching.
type TradeListener struct {
	mu     sync.RWMutex
	trades []Trade
	volume decimal.Decimal
}

func NewTradeListener() *TradeListener {
	return &TradeListener{}
}

// Attach registers l on engine.
func (l *TradeListener) Attach(engine *MatchingEngine) {
	engine.RegisterTradeCallback(l.OnTrades)
}

func (l *TradeListener) OnTrades(trades []Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range trades {
		l.trades = append(l.trades, t)
		l.volume = l.volume.Add(t.Volume)
	}
}

// Trades returns a copy of everything observed, in execution order.
func (l *TradeListener) Trades() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Trade(nil), l.trades...)
}

func (l *TradeListener) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

func (l *TradeListener) TotalVolume() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.volume
}
