package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by GetEvent when no row exists for a uid.
var ErrNotFound = errors.New("event not found")

// Store defines the interface for calwatch data operations. The write
// side is a single Apply call so one reconciliation pass is always one
// transaction; everything else is a pure read.
type Store interface {
	ActiveInWindow(ctx context.Context, startDate, endDate string) ([]Event, error)
	Apply(ctx context.Context, set ApplySet) error
	GetEvent(ctx context.Context, uid string) (*Event, error)
	EventsOverlapping(ctx context.Context, fromDate, toDate string) ([]Event, error)
	Changes(ctx context.Context, since time.Time) ([]ChangeRecord, error)
	GetStats(ctx context.Context) (*Stats, error)
	PurgeAll(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	getEvent     *sql.Stmt
	upsertEvent  *sql.Stmt
	refreshEvent *sql.Stmt
	markDeleted  *sql.Stmt
	insertChange *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and
// migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getEvent, err = s.db.Prepare(`
		SELECT uid, title, start_time, end_time, first_seen, last_seen, meeting_link, deleted
		FROM events WHERE uid = ?
	`)
	if err != nil {
		return err
	}

	// INSERT OR REPLACE keyed by uid: a resurrection of a previously
	// deleted identity resets first_seen/last_seen, while its earlier
	// audit entries stay in the changes table untouched.
	s.upsertEvent, err = s.db.Prepare(`
		INSERT OR REPLACE INTO events (uid, title, start_time, end_time, first_seen, last_seen, meeting_link, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`)
	if err != nil {
		return err
	}

	s.refreshEvent, err = s.db.Prepare(`
		UPDATE events SET last_seen = ?, meeting_link = ?, deleted = 0 WHERE uid = ?
	`)
	if err != nil {
		return err
	}

	s.markDeleted, err = s.db.Prepare(`
		UPDATE events SET deleted = 1, last_seen = ? WHERE uid = ?
	`)
	if err != nil {
		return err
	}

	s.insertChange, err = s.db.Prepare(`
		INSERT INTO changes (ts, action, uid, title, start_time, end_time, meeting_link)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	return nil
}

// tsFormat is the stored form of observation timestamps (first_seen,
// last_seen, changes.ts). Event start/end strings are untouched local
// wall-clock values and never pass through this.
const tsFormat = time.RFC3339

// parseTimestamp tries the common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// ActiveInWindow returns all non-deleted events whose start date falls
// within [startDate, endDate] (inclusive "2006-01-02" bounds). This is
// the snapshot slice one reconciliation pass diffs against.
func (s *SQLiteStore) ActiveInWindow(ctx context.Context, startDate, endDate string) ([]Event, error) {
	return s.scanEvents(ctx, `
		SELECT uid, title, start_time, end_time, first_seen, last_seen, meeting_link, deleted
		FROM events
		WHERE deleted = 0
		  AND date(start_time) >= date(?)
		  AND date(start_time) <= date(?)
		ORDER BY start_time, uid
	`, startDate, endDate)
}

// Apply commits one reconciliation write set in a single transaction.
// Audit entries are appended in retire, add, remove order so a retired
// identity's record always precedes the add that replaced it. Any
// failure rolls the whole set back; the caller may retry.
func (s *SQLiteStore) Apply(ctx context.Context, set ApplySet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := set.Now.UTC().Format(tsFormat)

	for _, e := range set.Retires {
		if _, err := tx.StmtContext(ctx, s.markDeleted).ExecContext(ctx, now, e.UID); err != nil {
			return fmt.Errorf("retire %s: %w", e.UID, err)
		}
		if err := s.appendChange(ctx, tx, now, ActionRetired, e); err != nil {
			return err
		}
	}

	for _, e := range set.Adds {
		if _, err := tx.StmtContext(ctx, s.upsertEvent).ExecContext(ctx,
			e.UID, e.Title, e.StartTime, e.EndTime, now, now, e.MeetingLink,
		); err != nil {
			return fmt.Errorf("insert %s: %w", e.UID, err)
		}
		if err := s.appendChange(ctx, tx, now, ActionAdded, e); err != nil {
			return err
		}
	}

	for _, r := range set.Refreshes {
		if _, err := tx.StmtContext(ctx, s.refreshEvent).ExecContext(ctx, now, r.MeetingLink, r.UID); err != nil {
			return fmt.Errorf("refresh %s: %w", r.UID, err)
		}
	}

	for _, e := range set.Removes {
		if _, err := tx.StmtContext(ctx, s.markDeleted).ExecContext(ctx, now, e.UID); err != nil {
			return fmt.Errorf("remove %s: %w", e.UID, err)
		}
		if err := s.appendChange(ctx, tx, now, ActionRemoved, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciliation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) appendChange(ctx context.Context, tx *sql.Tx, ts string, action Action, e Event) error {
	_, err := tx.StmtContext(ctx, s.insertChange).ExecContext(ctx,
		ts, string(action), e.UID, e.Title, e.StartTime, e.EndTime, e.MeetingLink,
	)
	if err != nil {
		return fmt.Errorf("append %s change for %s: %w", action, e.UID, err)
	}
	return nil
}

// GetEvent retrieves a single event row by uid, deleted or not.
func (s *SQLiteStore) GetEvent(ctx context.Context, uid string) (*Event, error) {
	var e Event
	var firstSeen, lastSeen string
	var deleted int

	err := s.getEvent.QueryRowContext(ctx, uid).Scan(
		&e.UID, &e.Title, &e.StartTime, &e.EndTime, &firstSeen, &lastSeen, &e.MeetingLink, &deleted,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %s: %w", uid, ErrNotFound)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	e.FirstSeen, _ = parseTimestamp(firstSeen)
	e.LastSeen, _ = parseTimestamp(lastSeen)
	e.Deleted = deleted != 0

	return &e, nil
}

// EventsOverlapping returns all non-deleted events whose [start_time,
// end_time) span intersects the inclusive date range [fromDate, toDate],
// ordered by start_time then uid. A zero-duration event counts as its
// start instant so it still shows up on its own day.
func (s *SQLiteStore) EventsOverlapping(ctx context.Context, fromDate, toDate string) ([]Event, error) {
	rangeStart := fromDate + "T00:00:00"
	rangeEnd := toDate + "T23:59:59"

	return s.scanEvents(ctx, `
		SELECT uid, title, start_time, end_time, first_seen, last_seen, meeting_link, deleted
		FROM events
		WHERE deleted = 0
		  AND start_time <= ?
		  AND (end_time > ? OR (start_time = end_time AND start_time >= ?))
		ORDER BY start_time, uid
	`, rangeEnd, rangeStart, rangeStart)
}

// scanEvents executes a query and scans results into Event slices.
func (s *SQLiteStore) scanEvents(ctx context.Context, query string, args ...interface{}) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var firstSeen, lastSeen string
		var deleted int
		if err := rows.Scan(
			&e.UID, &e.Title, &e.StartTime, &e.EndTime, &firstSeen, &lastSeen, &e.MeetingLink, &deleted,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.FirstSeen, _ = parseTimestamp(firstSeen)
		e.LastSeen, _ = parseTimestamp(lastSeen)
		e.Deleted = deleted != 0
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice rather than nil
	if events == nil {
		events = []Event{}
	}

	return events, nil
}

// Changes returns all audit entries with ts >= since, ordered by
// sequence id ascending. The log is append-only, so sequence order is
// also chronological. A zero since returns the whole log.
func (s *SQLiteStore) Changes(ctx context.Context, since time.Time) ([]ChangeRecord, error) {
	query := `
		SELECT id, ts, action, uid, title, start_time, end_time, meeting_link
		FROM changes
	`
	var args []interface{}
	if !since.IsZero() {
		query += " WHERE ts >= ?"
		args = append(args, since.UTC().Format(tsFormat))
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var records []ChangeRecord
	for rows.Next() {
		var c ChangeRecord
		var ts, action string
		if err := rows.Scan(
			&c.Seq, &ts, &action, &c.UID, &c.Title, &c.StartTime, &c.EndTime, &c.MeetingLink,
		); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.Timestamp, _ = parseTimestamp(ts)
		c.Action = Action(action)
		records = append(records, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if records == nil {
		records = []ChangeRecord{}
	}

	return records, nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE deleted = 0").Scan(&stats.ActiveEvents)
	if err != nil {
		return nil, fmt.Errorf("count active events: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM changes").Scan(&stats.TotalChanges)
	if err != nil {
		return nil, fmt.Errorf("count changes: %w", err)
	}

	if stats.TotalEvents > 0 {
		err = s.db.QueryRowContext(ctx,
			"SELECT MIN(start_time), MAX(start_time) FROM events",
		).Scan(&stats.OldestStart, &stats.NewestStart)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
	}

	if stats.TotalChanges > 0 {
		var lastStr string
		err = s.db.QueryRowContext(ctx, "SELECT MAX(ts) FROM changes").Scan(&lastStr)
		if err != nil {
			return nil, fmt.Errorf("last change: %w", err)
		}
		stats.LastChange, _ = parseTimestamp(lastStr)
	}

	return stats, nil
}

// PurgeAll deletes all events and audit history.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM changes",
		"DELETE FROM events",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.getEvent, s.upsertEvent, s.refreshEvent,
		s.markDeleted, s.insertChange,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
