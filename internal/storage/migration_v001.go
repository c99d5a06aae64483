package storage

import "database/sql"

// migrateV001 creates the initial calwatch schema: the events snapshot
// table and the append-only changes audit log. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS events (
			uid          TEXT PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			start_time   TEXT NOT NULL,
			end_time     TEXT NOT NULL,
			first_seen   TEXT NOT NULL,
			last_seen    TEXT NOT NULL,
			meeting_link TEXT NOT NULL DEFAULT '',
			deleted      INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS changes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ts           TEXT NOT NULL,
			action       TEXT NOT NULL,
			uid          TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			start_time   TEXT NOT NULL DEFAULT '',
			end_time     TEXT NOT NULL DEFAULT '',
			meeting_link TEXT NOT NULL DEFAULT ''
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_deleted    ON events(deleted)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_ts        ON changes(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_uid       ON changes(uid)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
