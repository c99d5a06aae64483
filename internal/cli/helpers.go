package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/runnerr0/calwatch/internal/config"
	"github.com/runnerr0/calwatch/internal/storage"
)

// newLogger builds the zerolog console logger used by all subcommands.
func newLogger(globals *GlobalFlags, cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg != nil {
		if parsed, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsed
		}
	}
	if globals != nil && globals.Verbose {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// loadConfig resolves the config for a command: an explicit --config
// path must load cleanly; otherwise the default path is loaded or
// created with defaults.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// resolveDBPath determines the SQLite database file path.
// Priority: --db-path flag > config file.
func resolveDBPath(globals *GlobalFlags, cfg *config.Config) (string, error) {
	if globals != nil && globals.DBPath != "" {
		return globals.DBPath, nil
	}
	return cfg.DBPath()
}

// openStore opens the SQLite store at dbPath, creating the directory
// and running migrations.
func openStore(dbPath string) (*storage.SQLiteStore, *sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	return store, db, nil
}

// openConfiguredStore is the common command prologue: load config,
// resolve the database path, open the store.
func openConfiguredStore(globals *GlobalFlags) (*storage.SQLiteStore, *sql.DB, *config.Config, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, nil, nil, err
	}

	dbPath, err := resolveDBPath(globals, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store, db, err := openStore(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}

	return store, db, cfg, nil
}

// parseDuration parses a human-friendly duration string like "30d",
// "24h", "2w" or "90m" (m is minutes, not months).
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration %q (use d, h, w, or m suffix)", s)
	}
}

// parseSince turns a --since value into an absolute timestamp: either a
// relative duration ("48h", "7d") measured back from now, or an ISO
// datetime.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if d, err := parseDuration(s); err == nil {
		return now.Add(-d), nil
	}

	for _, f := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid --since value %q (use a duration like 48h or an ISO datetime)", s)
}

// validateDate checks a YYYY-MM-DD argument.
func validateDate(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return nil
}
