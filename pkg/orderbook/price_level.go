package orderbook

import (
	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// PriceLevel is the FIFO queue of resting orders at one price. Orders are
// appended in submission sequence order, so the head always has time
// priority.
type PriceLevel struct {
	price  decimal.Decimal
	orders deque.Deque[*Order]
	volume decimal.Decimal
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{price: price}
}

func (p *PriceLevel) Price() decimal.Decimal  { return p.price }
func (p *PriceLevel) Len() int                { return p.orders.Len() }
func (p *PriceLevel) Volume() decimal.Decimal { return p.volume }

func (p *PriceLevel) head() *Order {
	if p.orders.Len() == 0 {
		return nil
	}
	return p.orders.Front()
}

func (p *PriceLevel) push(o *Order) {
	p.orders.PushBack(o)
	p.volume = p.volume.Add(o.remaining)
}

func (p *PriceLevel) popHead() *Order {
	o := p.orders.PopFront()
	p.volume = p.volume.Sub(o.remaining)
	return o
}

// reduce accounts for a partial fill of an order still queued here.
func (p *PriceLevel) reduce(qty decimal.Decimal) {
	p.volume = p.volume.Sub(qty)
}

// remove unlinks the order with the given id. Cancels are O(k) in the
// level length; heads are the common case and hit index 0.
func (p *PriceLevel) remove(id string) (*Order, bool) {
	i := p.orders.Index(func(o *Order) bool { return o.ID == id })
	if i < 0 {
		return nil, false
	}
	o := p.orders.Remove(i)
	p.volume = p.volume.Sub(o.remaining)
	return o, true
}

// Orders copies out the resting orders in time priority.
func (p *PriceLevel) Orders() []Order {
	out := make([]Order, 0, p.orders.Len())
	for i := 0; i < p.orders.Len(); i++ {
		out = append(out, *p.orders.At(i))
	}
	return out
}

// LevelSnapshot is a detached copy of a PriceLevel.
type LevelSnapshot struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
	Orders []Order
}

func (p *PriceLevel) snapshot(withOrders bool) LevelSnapshot {
	s := LevelSnapshot{Price: p.price, Volume: p.volume}
	if withOrders {
		s.Orders = p.Orders()
	}
	return s
}
