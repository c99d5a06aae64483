package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/calwatch/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string `json:"version"`
	DatabasePath      string `json:"database_path"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	TotalEvents       int64  `json:"total_events"`
	ActiveEvents      int64  `json:"active_events"`
	TotalChanges      int64  `json:"total_changes"`
	OldestStart       string `json:"oldest_start,omitempty"`
	NewestStart       string `json:"newest_start,omitempty"`
	LastChange        string `json:"last_change,omitempty"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	store, db, cfg, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	dbPath, err := resolveDBPath(c.globals, cfg)
	if err != nil {
		return err
	}

	return c.executeWithStore(store, db, dbPath)
}

// executeWithStore runs status against a provided store and db (for testing).
func (c *StatusCommand) executeWithStore(store storage.Store, db *sql.DB, dbPath string) error {
	stats, err := store.GetStats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := getDatabaseSize(db, dbPath)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, dbPath, dbSize)
	}
	return c.printStatusHuman(stats, dbPath, dbSize)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbPath string, dbSize int64) error {
	fmt.Println("calwatch Status")
	fmt.Println("===============")
	fmt.Printf("Version:    %s\n", c.version)
	fmt.Printf("Database:   %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Events:     %d (%d active, %d deleted)\n",
		stats.TotalEvents, stats.ActiveEvents, stats.TotalEvents-stats.ActiveEvents)
	fmt.Printf("Changes:    %d\n", stats.TotalChanges)

	if stats.TotalEvents > 0 {
		fmt.Printf("Oldest:     %s\n", stats.OldestStart)
		fmt.Printf("Newest:     %s\n", stats.NewestStart)
	}
	if !stats.LastChange.IsZero() {
		fmt.Printf("Last sync:  %s\n", stats.LastChange.Local().Format("2006-01-02 15:04:05"))
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbPath string, dbSize int64) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		TotalEvents:       stats.TotalEvents,
		ActiveEvents:      stats.ActiveEvents,
		TotalChanges:      stats.TotalChanges,
		OldestStart:       stats.OldestStart,
		NewestStart:       stats.NewestStart,
	}
	if !stats.LastChange.IsZero() {
		out.LastChange = stats.LastChange.UTC().Format(time.RFC3339)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
