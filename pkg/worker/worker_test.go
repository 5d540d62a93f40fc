package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/joripage/coinexchange/pkg/broadcast"
	"github.com/joripage/coinexchange/pkg/journal"
	kafkawrapper "github.com/joripage/coinexchange/pkg/kafka_wrapper"
	"github.com/stretchr/testify/require"
)

func tradeMessage(t *testing.T, partition int, offset int64, tradeID string) kafkawrapper.Message {
	t.Helper()
	body, err := json.Marshal(broadcast.TradeMessage{TradeID: tradeID, Symbol: "BTCUSD", Price: "1", Volume: "1"})
	require.NoError(t, err)
	return kafkawrapper.Message{Topic: "trades", Partition: partition, Offset: offset, Value: body}
}

func TestHandleBatchGroupsByPartition(t *testing.T) {
	stores := map[string]*journal.MemoryStore{}
	w := NewWorker(func(runID string) journal.EventStore {
		s := journal.NewMemoryStore()
		stores[runID] = s
		return s
	})

	msgs := []kafkawrapper.Message{
		tradeMessage(t, 0, 10, "T1"),
		tradeMessage(t, 1, 10, "T2"),
		{Topic: "trades", Partition: 0, Offset: 11, Value: []byte("garbage")},
		tradeMessage(t, 0, 12, "T3"),
	}
	require.NoError(t, w.HandleBatch(context.Background(), msgs))

	require.Len(t, stores, 2)
	require.Equal(t, 2, stores[RunID("trades", 0)].Len())
	require.Equal(t, 1, stores[RunID("trades", 1)].Len())

	var seqs []uint64
	require.NoError(t, stores["trades/0"].Replay(context.Background(), func(r journal.Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	}))
	require.Equal(t, []uint64{10, 12}, seqs)

	// redelivery reuses the partition store
	require.NoError(t, w.HandleBatch(context.Background(), msgs[:1]))
	require.Len(t, stores, 2)
	require.Equal(t, 2, stores["trades/0"].Len())
	require.NoError(t, w.Close())
}

type brokenStore struct{}

func (brokenStore) Append(context.Context, []journal.Record) error { return errors.New("db down") }
func (brokenStore) Close() error                                   { return nil }

func TestHandleBatchPropagatesStoreErrors(t *testing.T) {
	w := NewWorker(func(string) journal.EventStore { return brokenStore{} })
	err := w.HandleBatch(context.Background(), []kafkawrapper.Message{tradeMessage(t, 0, 1, "T1")})
	require.Error(t, err)
}
