package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/calwatch/internal/storage"
)

// eventHeaders is the stable field order for view output; downstream
// table/JSON/CSV consumers rely on it.
var eventHeaders = []string{"title", "start_time", "end_time", "meeting_link"}

// Execute implements the go-flags Commander interface for ViewCommand.
func (c *ViewCommand) Execute(args []string) error {
	store, db, _, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store)
}

// executeWithStore runs the view query against a provided store (used by tests).
func (c *ViewCommand) executeWithStore(store storage.Store) error {
	if c.Date != "" && (c.From != "" || c.To != "") {
		return fmt.Errorf("--date is mutually exclusive with --from/--to")
	}

	from, to := c.From, c.To
	switch {
	case c.Date != "":
		from, to = c.Date, c.Date
	case from == "" && to == "":
		today := time.Now().Format("2006-01-02")
		from, to = today, today
	case from == "":
		from = to
	case to == "":
		to = from
	}

	for _, d := range []string{from, to} {
		if err := validateDate(d); err != nil {
			return err
		}
	}

	events, err := store.EventsOverlapping(context.Background(), from, to)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	rows := make([][]string, len(events))
	for i, e := range events {
		rows[i] = []string{e.Title, e.StartTime, e.EndTime, e.MeetingLink}
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]map[string]string, len(rows))
		for i, row := range rows {
			m := make(map[string]string, len(eventHeaders))
			for j, h := range eventHeaders {
				m[h] = row[j]
			}
			out[i] = m
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if c.Format == "csv" {
		return writeCSV(os.Stdout, eventHeaders, rows)
	}

	fmt.Print(renderTable(eventHeaders, rows))
	return nil
}
