package journal

import (
	"context"
	"errors"
)

var ErrStoreClosed = errors.New("event store closed")

// Record is one journaled pipeline event.
type Record struct {
	Seq     uint64
	Payload []byte
}

// EventStore is the durable sink the Journaler writes to.
type EventStore interface {
	Append(ctx context.Context, records []Record) error
	Close() error
}

// Replayer is implemented by stores that can read their records back in
// sequence order.
type Replayer interface {
	Replay(ctx context.Context, fn func(Record) error) error
}

// NoopStore discards everything.
type NoopStore struct{}

func (NoopStore) Append(context.Context, []Record) error { return nil }
func (NoopStore) Close() error                             { return nil }
