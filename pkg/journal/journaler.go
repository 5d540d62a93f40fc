// Package journal persists pipeline events into an EventStore.
package journal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joripage/coinexchange/pkg/logging"
	"go.uber.org/zap"
)

const DefaultBatchSize = 256

type Config struct {
	BatchSize    int
	WriteTimeout time.Duration // per Append; zero means none
}

// Journaler is a pipeline consumer. It buffers payloads and appends them to
// its store at the end of every pipeline batch or when the buffer fills.
// A failed append is logged and dropped; matching is never affected.
type Journaler struct {
	store  EventStore
	cfg    Config
	logger *logging.Logger

	pending []Record

	written  atomic.Uint64
	failures atomic.Uint64
}

func NewJournaler(store EventStore, cfg Config, logger *logging.Logger) *Journaler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Journaler{
		store:   store,
		cfg:     cfg,
		logger:  logging.OrNop(logger).Named("journal"),
		pending: make([]Record, 0, cfg.BatchSize),
	}
}

// OnEvent implements pipeline.Handler. It only runs on the journaler's
// consumer goroutine.
func (j *Journaler) OnEvent(seq uint64, payload []byte, endOfBatch bool) error {
	j.pending = append(j.pending, Record{Seq: seq, Payload: append([]byte(nil), payload...)})
	if !endOfBatch && len(j.pending) < j.cfg.BatchSize {
		return nil
	}
	return j.flush()
}

func (j *Journaler) flush() error {
	if len(j.pending) == 0 {
		return nil
	}
	batch := j.pending
	j.pending = make([]Record, 0, j.cfg.BatchSize)

	ctx := context.Background()
	if j.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.cfg.WriteTimeout)
		defer cancel()
	}

	if err := j.store.Append(ctx, batch); err != nil {
		j.failures.Add(1)
		j.logger.Error(ctx, "append batch",
			zap.Uint64("first_seq", batch[0].Seq),
			zap.Int("size", len(batch)),
			zap.Error(err))
		return fmt.Errorf("journal batch at seq %d: %w", batch[0].Seq, err)
	}
	j.written.Add(uint64(len(batch)))
	return nil
}

// Written counts records the store accepted.
func (j *Journaler) Written() uint64 { return j.written.Load() }

// Failures counts batches the store rejected.
func (j *Journaler) Failures() uint64 { return j.failures.Load() }

func (j *Journaler) Close() error {
	return j.store.Close()
}
