package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/calwatch/internal/storage"
)

// changeHeaders is the stable field order for change-feed output.
var changeHeaders = []string{"ts", "action", "uid", "title", "start_time", "end_time", "meeting_link"}

// Execute implements the go-flags Commander interface for ChangesCommand.
func (c *ChangesCommand) Execute(args []string) error {
	store, db, _, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store)
}

// executeWithStore runs the change-feed query against a provided store (used by tests).
func (c *ChangesCommand) executeWithStore(store storage.Store) error {
	since, err := parseSince(c.Since, time.Now())
	if err != nil {
		return err
	}

	changes, err := store.Changes(context.Background(), since)
	if err != nil {
		return fmt.Errorf("query changes: %w", err)
	}

	rows := make([][]string, len(changes))
	for i, ch := range changes {
		rows[i] = []string{
			ch.Timestamp.UTC().Format(time.RFC3339),
			string(ch.Action),
			ch.UID,
			ch.Title,
			ch.StartTime,
			ch.EndTime,
			ch.MeetingLink,
		}
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]map[string]string, len(rows))
		for i, row := range rows {
			m := make(map[string]string, len(changeHeaders))
			for j, h := range changeHeaders {
				m[h] = row[j]
			}
			out[i] = m
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if c.Format == "csv" {
		return writeCSV(os.Stdout, changeHeaders, rows)
	}

	fmt.Print(renderTable(changeHeaders, rows))
	return nil
}
