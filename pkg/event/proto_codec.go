package event

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"
)

// field numbers of the binary layout
const (
	fieldKind protowire.Number = iota + 1
	fieldSymbol
	fieldSeq
	fieldOrderID
	fieldTraderID
	fieldSide
	fieldOrderType
	fieldPrice
	fieldVolume
	fieldRemaining
	fieldTradeID
	fieldBuyOrderID
	fieldSellOrderID
	fieldTimestamp
	fieldBuyTraderID
	fieldSellTraderID
)

// ProtoCodec writes events in protobuf wire format without generated
// messages. Decimals travel as their canonical strings, timestamps as unix
// nanoseconds. Unknown fields are skipped so the layout can grow.
type ProtoCodec struct{}

func (ProtoCodec) Encode(ev *Event) ([]byte, error) {
	if ev == nil || !ev.Kind.valid() {
		return nil, fmt.Errorf("encode: %w", ErrMalformedEvent)
	}
	b := make([]byte, 0, 128)
	b = appendVarint(b, fieldKind, uint64(ev.Kind))
	b = appendString(b, fieldSymbol, ev.Symbol)
	b = appendVarint(b, fieldSeq, ev.Seq)
	b = appendString(b, fieldOrderID, ev.OrderID)
	b = appendString(b, fieldTraderID, ev.TraderID)
	b = appendString(b, fieldSide, ev.Side)
	b = appendString(b, fieldOrderType, ev.OrderType)
	b = appendDecimal(b, fieldPrice, ev.Price)
	b = appendDecimal(b, fieldVolume, ev.Volume)
	b = appendDecimal(b, fieldRemaining, ev.Remaining)
	b = appendString(b, fieldTradeID, ev.TradeID)
	b = appendString(b, fieldBuyOrderID, ev.BuyOrderID)
	b = appendString(b, fieldSellOrderID, ev.SellOrderID)
	b = appendString(b, fieldBuyTraderID, ev.BuyTraderID)
	b = appendString(b, fieldSellTraderID, ev.SellTraderID)
	if !ev.Timestamp.IsZero() {
		b = appendVarint(b, fieldTimestamp, uint64(ev.Timestamp.UnixNano()))
	}
	return b, nil
}

func (ProtoCodec) Decode(payload []byte) (*Event, error) {
	ev := &Event{}
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, protowire.ParseError(n))
		}
		payload = payload[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldKind || num == fieldSeq || num == fieldTimestamp):
			v, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, protowire.ParseError(n))
			}
			payload = payload[n:]
			switch num {
			case fieldKind:
				ev.Kind = Kind(v)
			case fieldSeq:
				ev.Seq = v
			case fieldTimestamp:
				ev.Timestamp = time.Unix(0, int64(v)).UTC()
			}
		case typ == protowire.BytesType && isStringField(num):
			s, n := protowire.ConsumeString(payload)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, protowire.ParseError(n))
			}
			payload = payload[n:]
			if err := ev.setString(num, s); err != nil {
				return nil, err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, payload)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, protowire.ParseError(n))
			}
			payload = payload[n:]
		}
	}
	if !ev.Kind.valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedEvent, ev.Kind)
	}
	return ev, nil
}

func isStringField(num protowire.Number) bool {
	switch num {
	case fieldKind, fieldSeq, fieldTimestamp:
		return false
	}
	return num >= fieldSymbol && num <= fieldSellTraderID
}

func (ev *Event) setString(num protowire.Number, s string) error {
	switch num {
	case fieldSymbol:
		ev.Symbol = s
	case fieldOrderID:
		ev.OrderID = s
	case fieldTraderID:
		ev.TraderID = s
	case fieldSide:
		ev.Side = s
	case fieldOrderType:
		ev.OrderType = s
	case fieldTradeID:
		ev.TradeID = s
	case fieldBuyOrderID:
		ev.BuyOrderID = s
	case fieldSellOrderID:
		ev.SellOrderID = s
	case fieldBuyTraderID:
		ev.BuyTraderID = s
	case fieldSellTraderID:
		ev.SellTraderID = s
	case fieldPrice, fieldVolume, fieldRemaining:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedEvent, num, err)
		}
		switch num {
		case fieldPrice:
			ev.Price = d
		case fieldVolume:
			ev.Volume = d
		default:
			ev.Remaining = d
		}
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDecimal(b []byte, num protowire.Number, d decimal.Decimal) []byte {
	if d.IsZero() {
		return b
	}
	return appendString(b, num, d.String())
}
