package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers starting at
// start+1. Next is safe for concurrent use, but a book only ever calls it
// from its single writer so the numbers double as time priority.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
