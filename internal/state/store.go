package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/db"
	pkgstate "github.com/goran-ethernal/ChainProcessor/pkg/state"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

const logTable = "processed_events_log"

// LogEntry is a row of the processed events log.
type LogEntry struct {
	ID               int64     `meddler:"id,pk"`
	Processor        string    `meddler:"processor"`
	Chain            string    `meddler:"substrate_chain"`
	EventID          string    `meddler:"event_id"`
	IndexerHead      int64     `meddler:"indexer_head"`
	ChainHead        int64     `meddler:"chain_head"`
	LastScannedBlock int64     `meddler:"last_scanned_block"`
	UpdatedAt        time.Time `meddler:"updated_at,utctime"`
}

// Store reads and appends checkpoints. Event ids are stored zero padded so that
// ordering by event_id follows block order.
type Store struct {
	db       *sql.DB
	dialect  *meddler.Database
	bindType int
}

// NewStore creates a store over an open database using the dialect of driver.
func NewStore(database *sql.DB, driver string) *Store {
	return &Store{
		db:       database,
		dialect:  db.Dialect(driver),
		bindType: db.BindType(driver),
	}
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Append writes entry through exec, or through the store's own database when exec is nil.
func (s *Store) Append(exec meddler.DB, entry *LogEntry) error {
	if exec == nil {
		exec = s.db
	}

	sortable, err := pkgstate.SortableEventID(entry.EventID)
	if err != nil {
		return err
	}

	row := *entry
	row.EventID = sortable
	if err := s.dialect.Insert(exec, logTable, &row); err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	entry.ID = row.ID

	return nil
}

// LoadCheckpoint returns the latest checkpoint of a processor on a chain, or nil if there is none.
func (s *Store) LoadCheckpoint(ctx context.Context, processor, chain string) (*pkgstate.Checkpoint, error) {
	query := sqlx.Rebind(s.bindType, `
		SELECT * FROM processed_events_log
		WHERE processor = ? AND substrate_chain = ?
		ORDER BY event_id DESC, last_scanned_block DESC
		LIMIT 1`)

	rows, err := s.db.QueryContext(ctx, query, processor, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var entry LogEntry
	if err := s.dialect.ScanRow(rows, &entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	height, index, err := pkgstate.ParseEventID(entry.EventID)
	if err != nil {
		return nil, err
	}

	return &pkgstate.Checkpoint{
		EventID:          pkgstate.FormatEventID(height, index),
		LastScannedBlock: entry.LastScannedBlock,
	}, nil
}

// CountProcessedEvents returns the number of distinct events recorded for a processor on a chain.
func (s *Store) CountProcessedEvents(ctx context.Context, processor, chain string) (int64, error) {
	query := sqlx.Rebind(s.bindType, `
		SELECT COUNT(DISTINCT event_id) FROM processed_events_log
		WHERE processor = ? AND substrate_chain = ?`)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, processor, chain).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count processed events: %w", err)
	}

	return count, nil
}
