package cli

import "database/sql"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Override SQLite database path"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// SyncCommand fetches the current calendar window and reconciles it
// against the snapshot store.
type SyncCommand struct {
	Lookback int  `long:"lookback" description:"Days before today to include in the fetch window (0 = today only)" default:"0"`
	DryRun   bool `long:"dry-run" description:"Compute and report the operation set without committing"`

	globals *GlobalFlags
	version string

	// fetch is injectable for tests; nil means run icalBuddy.
	fetch fetchFunc
}

// ViewCommand prints active events for a date or date range.
type ViewCommand struct {
	Date   string `long:"date" description:"Show events for a specific date (YYYY-MM-DD)"`
	From   string `long:"from" description:"Range start date, inclusive (YYYY-MM-DD)"`
	To     string `long:"to" description:"Range end date, inclusive (YYYY-MM-DD)"`
	Format string `long:"format" description:"Output format: table | csv" default:"table" choice:"table" choice:"csv"`

	globals *GlobalFlags
	version string
}

// ChangesCommand prints the audit log of lifecycle transitions.
type ChangesCommand struct {
	Since  string `long:"since" description:"Only changes newer than a duration (30m, 48h, 7d, 2w) or ISO timestamp"`
	Format string `long:"format" description:"Output format: table | csv" default:"table" choice:"table" choice:"csv"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows database statistics and sync health.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// ServeCommand runs the read-only HTTP query API.
type ServeCommand struct {
	Host string `long:"host" description:"Override listen host"`
	Port int    `long:"port" description:"Override listen port"`

	globals *GlobalFlags
	version string
}

// WatchCommand runs syncs on a cron schedule until interrupted.
type WatchCommand struct {
	Schedule string `long:"schedule" description:"Override cron schedule (e.g. */30 * * * *)"`
	Lookback int    `long:"lookback" description:"Lookback days for each scheduled sync" default:"0"`

	globals *GlobalFlags
	version string
}

// PurgeCommand deletes ALL calwatch data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open default DB
}
