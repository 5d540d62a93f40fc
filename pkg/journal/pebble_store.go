package journal

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const pebblePrefix = "event/"

// PebbleStore keeps the journal in a local pebble database, one key per
// sequence. Keys are zero padded so iteration order is sequence order.
//
// Pipeline sequences restart at 1 in every process, so each open continues
// after the highest key already stored: record seq n of this run is kept
// under base+n.
type PebbleStore struct {
	db   *pebble.DB
	base uint64
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble journal %s: %w", dir, err)
	}
	s := &PebbleStore{db: db}
	if s.base, err = s.LastSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("read pebble journal tail %s: %w", dir, err)
	}
	return s, nil
}

func (s *PebbleStore) Append(_ context.Context, records []Record) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, r := range records {
		if err := b.Set(keyFor(s.base+r.Seq), r.Payload, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *PebbleStore) Replay(ctx context.Context, fn func(Record) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(pebblePrefix),
		UpperBound: []byte(pebblePrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		// iterator memory is reused on Next
		payload := append([]byte(nil), iter.Value()...)
		if err := fn(Record{Seq: seq, Payload: payload}); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastSeq returns the highest journaled sequence across all runs, 0 when
// empty.
func (s *PebbleStore) LastSeq() (uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(pebblePrefix),
		UpperBound: []byte(pebblePrefix + "~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", pebblePrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(pebblePrefix))), "%d", &seq)
	return seq, err
}
