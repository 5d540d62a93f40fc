package journal

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[uint64][]byte
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uint64][]byte)}
}

func (s *MemoryStore) Append(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	for _, r := range records {
		s.records[r.Seq] = append([]byte(nil), r.Payload...)
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Replay walks records by ascending sequence.
func (s *MemoryStore) Replay(ctx context.Context, fn func(Record) error) error {
	s.mu.RLock()
	seqs := make([]uint64, 0, len(s.records))
	for seq := range s.records {
		seqs = append(seqs, seq)
	}
	snapshot := make(map[uint64][]byte, len(s.records))
	for k, v := range s.records {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for _, seq := range seqs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(Record{Seq: seq, Payload: snapshot[seq]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
