package journal

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JournalEvent is a row of the journal_events table.
type JournalEvent struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"uniqueIndex:idx_journal_events_run_seq"`
	Seq       uint64 `gorm:"uniqueIndex:idx_journal_events_run_seq"`
	Payload   []byte
	CreatedAt time.Time
}

func (JournalEvent) TableName() string { return "journal_events" }

// PostgresStore appends journal rows through gorm. Pipeline sequences
// restart with the process, so rows are scoped by RunID.
type PostgresStore struct {
	db    *gorm.DB
	runID string
}

func NewPostgresStore(db *gorm.DB, runID string) *PostgresStore {
	return &PostgresStore{db: db, runID: runID}
}

func (s *PostgresStore) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *PostgresStore) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*JournalEvent, 0, len(records))
	for _, r := range records {
		rows = append(rows, &JournalEvent{RunID: s.runID, Seq: r.Seq, Payload: r.Payload})
	}
	// redelivered sequences are already stored
	return s.dbWithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
}

func (s *PostgresStore) Replay(ctx context.Context, fn func(Record) error) error {
	rows, err := s.dbWithContext(ctx).Model(&JournalEvent{}).
		Where("run_id = ?", s.runID).Order("seq").Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ev JournalEvent
		if err := s.db.ScanRows(rows, &ev); err != nil {
			return err
		}
		if err := fn(Record{Seq: ev.Seq, Payload: ev.Payload}); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close leaves the shared *gorm.DB open.
func (s *PostgresStore) Close() error { return nil }
