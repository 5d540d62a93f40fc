package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/joripage/coinexchange/pkg/broadcast"
	"github.com/joripage/coinexchange/pkg/journal"
	kafkawrapper "github.com/joripage/coinexchange/pkg/kafka_wrapper"
	"go.uber.org/zap"
)

// StoreFactory opens the journal for one topic partition.
type StoreFactory func(runID string) journal.EventStore

// Worker persists trade messages from the trade topic. Kafka offsets
// become journal sequences, scoped by topic and partition, so a redelivered
// batch lands on the same rows.
type Worker struct {
	newStore StoreFactory

	mu     sync.Mutex
	stores map[string]journal.EventStore
}

func NewWorker(newStore StoreFactory) *Worker {
	return &Worker{
		newStore: newStore,
		stores:   make(map[string]journal.EventStore),
	}
}

// HandleBatch is the kafkawrapper.ConsumerGroup batch handler.
func (w *Worker) HandleBatch(ctx context.Context, msgs []kafkawrapper.Message) error {
	byRun := map[string][]journal.Record{}
	for _, msg := range msgs {
		var tm broadcast.TradeMessage
		if err := json.Unmarshal(msg.Value, &tm); err != nil {
			zap.S().Warnf("skip undecodable message %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			continue
		}
		runID := RunID(msg.Topic, msg.Partition)
		byRun[runID] = append(byRun[runID], journal.Record{Seq: uint64(msg.Offset), Payload: msg.Value})
	}

	runs := make([]string, 0, len(byRun))
	for runID := range byRun {
		runs = append(runs, runID)
	}
	sort.Strings(runs)

	for _, runID := range runs {
		if err := w.store(runID).Append(ctx, byRun[runID]); err != nil {
			return fmt.Errorf("append %s: %w", runID, err)
		}
	}
	return nil
}

func (w *Worker) store(runID string) journal.EventStore {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.stores[runID]
	if !ok {
		s = w.newStore(runID)
		w.stores[runID] = s
	}
	return s
}

// StartConsumer runs the consumer group until ctx is done.
func (w *Worker) StartConsumer(ctx context.Context, cg *kafkawrapper.ConsumerGroup) error {
	return cg.Run(ctx, w.HandleBatch)
}

func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var first error
	for _, s := range w.stores {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func RunID(topic string, partition int) string {
	return fmt.Sprintf("%s/%d", topic, partition)
}
