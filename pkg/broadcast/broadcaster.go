// Package broadcast forwards executed trades from the output pipeline to a
// Kafka topic for downstream market-data consumers.
package broadcast

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/joripage/coinexchange/pkg/event"
	"github.com/joripage/coinexchange/pkg/logging"
	"go.uber.org/zap"
)

// MessagePublisher is satisfied by kafkawrapper.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

type Config struct {
	Topic          string
	Codec          event.Codec // codec of the pipeline payloads, JSON when nil
	PublishTimeout time.Duration
}

// TradeMessage is the JSON body written to the trade topic.
type TradeMessage struct {
	TradeID      string    `json:"trade_id"`
	Symbol       string    `json:"symbol"`
	Seq          uint64    `json:"seq"`
	Price        string    `json:"price"`
	Volume       string    `json:"volume"`
	TakerSide    string    `json:"taker_side"`
	BuyOrderID   string    `json:"buy_order_id"`
	SellOrderID  string    `json:"sell_order_id"`
	BuyTraderID  string    `json:"buy_trader_id,omitempty"`
	SellTraderID string    `json:"sell_trader_id,omitempty"`
	ExecutedAt   time.Time `json:"executed_at"`
}

type TradeBroadcaster struct {
	pub    MessagePublisher
	cfg    Config
	logger *logging.Logger

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func NewTradeBroadcaster(pub MessagePublisher, cfg Config, logger *logging.Logger) *TradeBroadcaster {
	if cfg.Codec == nil {
		cfg.Codec = event.JSONCodec{}
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &TradeBroadcaster{
		pub:    pub,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("broadcast"),
	}
}

// OnEvent implements pipeline.Handler. Anything but TradeExecuted is skipped.
func (b *TradeBroadcaster) OnEvent(seq uint64, payload []byte, _ bool) error {
	ev, err := b.cfg.Codec.Decode(payload)
	if err != nil {
		b.dropped.Add(1)
		return err
	}
	if ev.Kind != event.KindTradeExecuted {
		return nil
	}

	body, err := json.Marshal(TradeMessage{
		TradeID:      ev.TradeID,
		Symbol:       ev.Symbol,
		Seq:          ev.Seq,
		Price:        ev.Price.String(),
		Volume:       ev.Volume.String(),
		TakerSide:    ev.Side,
		BuyOrderID:   ev.BuyOrderID,
		SellOrderID:  ev.SellOrderID,
		BuyTraderID:  ev.BuyTraderID,
		SellTraderID: ev.SellTraderID,
		ExecutedAt:   ev.Timestamp,
	})
	if err != nil {
		b.dropped.Add(1)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.PublishTimeout)
	defer cancel()

	headers := map[string]string{
		"kind":         ev.Kind.String(),
		"pipeline_seq": strconv.FormatUint(seq, 10),
	}
	if err := b.pub.Publish(ctx, b.cfg.Topic, []byte(ev.Symbol), body, headers); err != nil {
		b.dropped.Add(1)
		b.logger.Warn(ctx, "publish trade",
			zap.String("trade_id", ev.TradeID), zap.String("symbol", ev.Symbol), zap.Error(err))
		return err
	}
	b.sent.Add(1)
	return nil
}

func (b *TradeBroadcaster) Sent() uint64    { return b.sent.Load() }
func (b *TradeBroadcaster) Dropped() uint64 { return b.dropped.Load() }
