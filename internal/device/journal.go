package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Journal reasons record why a message was forwarded.
const (
	JournalReasonNew     = "new"
	JournalReasonChanged = "changed"
	JournalReasonReplay  = "replay"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 200

	// journalTimeFormat is fixed-width so created_at sorts lexically.
	journalTimeFormat = "2006-01-02T15:04:05.000000Z"
)

// JournalEntry is one forwarded message.
type JournalEntry struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal stores an audit trail of forwarded messages.
//
// Implementations must be thread-safe and use UTC timestamps. Nothing in
// the gateway reads the journal back into the Registry.
type Journal interface {
	// Record appends one forwarded message.
	Record(ctx context.Context, address, message, reason string) error

	// Recent returns the newest entries for address, newest first.
	Recent(ctx context.Context, address string, limit int) ([]JournalEntry, error)
}

// SQLiteJournal implements Journal using the publish_journal table.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal creates a journal on an open SQLite connection.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db}
}

// Record inserts a journal row.
//
// Returns:
//   - error: ErrInvalidAddress, ErrInvalidReason, or the underlying database error
func (j *SQLiteJournal) Record(ctx context.Context, address, message, reason string) error {
	if address == "" {
		return ErrInvalidAddress
	}
	switch reason {
	case JournalReasonNew, JournalReasonChanged, JournalReasonReplay:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO publish_journal (address, message, reason, created_at) VALUES (?, ?, ?, ?)",
		address,
		message,
		reason,
		time.Now().UTC().Format(journalTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for address ordered newest first
// (default 50, max 200).
func (j *SQLiteJournal) Recent(ctx context.Context, address string, limit int) ([]JournalEntry, error) {
	if address == "" {
		return nil, ErrInvalidAddress
	}
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, address, message, reason, created_at
		 FROM publish_journal
		 WHERE address = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		address,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]JournalEntry, 0, limit)
	for rows.Next() {
		var entry JournalEntry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Address, &entry.Message, &entry.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		entry.CreatedAt, err = time.Parse(journalTimeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many went.
func (j *SQLiteJournal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(journalTimeFormat)
	result, err := j.db.ExecContext(ctx,
		"DELETE FROM publish_journal WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting journal entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}
