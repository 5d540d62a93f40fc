package orderbook

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceOrder sorts decimal price keys in a skiplist. Bids use the
// descending order so Front() is always the best price on either side.
type priceOrder int

const (
	ascending priceOrder = iota
	descending
)

var _ skiplist.Comparable = priceOrder(0)

func (p priceOrder) Compare(lhs, rhs interface{}) int {
	c := lhs.(decimal.Decimal).Cmp(rhs.(decimal.Decimal))
	if p == descending {
		return -c
	}
	return c
}

// CalcScore must agree with Compare; InexactFloat64 is monotonic so ties on
// the score are settled by Compare.
func (p priceOrder) CalcScore(key interface{}) float64 {
	f := key.(decimal.Decimal).InexactFloat64()
	if p == descending {
		return -f
	}
	return f
}

type bookSide struct {
	side   Side
	levels *skiplist.SkipList
	count  int // resting orders
}

func newBookSide(side Side) *bookSide {
	order := ascending
	if side == BUY {
		order = descending
	}
	return &bookSide{side: side, levels: skiplist.New(order)}
}

func (s *bookSide) best() *PriceLevel {
	elem := s.levels.Front()
	if elem == nil {
		return nil
	}
	return elem.Value.(*PriceLevel)
}

func (s *bookSide) level(price decimal.Decimal) *PriceLevel {
	elem := s.levels.Get(price)
	if elem == nil {
		return nil
	}
	return elem.Value.(*PriceLevel)
}

func (s *bookSide) insert(o *Order) {
	price := o.Price.Decimal
	lvl := s.level(price)
	if lvl == nil {
		lvl = newPriceLevel(price)
		s.levels.Set(price, lvl)
	}
	lvl.push(o)
	s.count++
}

// dropIfEmpty keeps the no-empty-level invariant.
func (s *bookSide) dropIfEmpty(lvl *PriceLevel) {
	if lvl.Len() == 0 {
		s.levels.Remove(lvl.price)
	}
}

func (s *bookSide) remove(o *Order) bool {
	lvl := s.level(o.Price.Decimal)
	if lvl == nil {
		return false
	}
	if _, ok := lvl.remove(o.ID); !ok {
		return false
	}
	s.count--
	s.dropIfEmpty(lvl)
	return true
}

// walk visits levels best first until fn returns false.
func (s *bookSide) walk(fn func(*PriceLevel) bool) {
	for elem := s.levels.Front(); elem != nil; elem = elem.Next() {
		if !fn(elem.Value.(*PriceLevel)) {
			return
		}
	}
}

func (s *bookSide) snapshot(depth int, withOrders bool) []LevelSnapshot {
	n := s.levels.Len()
	if depth > 0 && depth < n {
		n = depth
	}
	out := make([]LevelSnapshot, 0, n)
	s.walk(func(lvl *PriceLevel) bool {
		out = append(out, lvl.snapshot(withOrders))
		return len(out) < n
	})
	return out
}
