package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Sync    *SyncCommand
	View    *ViewCommand
	Changes *ChangesCommand
	Status  *StatusCommand
	Serve   *ServeCommand
	Watch   *WatchCommand
	Purge   *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "calwatch"
	parser.LongDescription = "Sync calendar events (via icalBuddy) into a local SQLite snapshot with a durable change history."

	cmds := &commands{
		Sync:    &SyncCommand{globals: &globals, version: version},
		View:    &ViewCommand{globals: &globals, version: version},
		Changes: &ChangesCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Serve:   &ServeCommand{globals: &globals, version: version},
		Watch:   &WatchCommand{globals: &globals, version: version},
		Purge:   &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("sync", "Fetch and reconcile the current window", "Fetch the current calendar window and reconcile it against the snapshot store.", cmds.Sync)
	parser.AddCommand("view", "Show active events", "Show active (non-deleted) events for a date or date range.", cmds.View)
	parser.AddCommand("changes", "Show the change history", "Show the append-only audit log of event lifecycle transitions.", cmds.Changes)
	parser.AddCommand("status", "Show database statistics", "Show database statistics and sync health.", cmds.Status)
	parser.AddCommand("serve", "Run the query API", "Run the read-only HTTP query API for external scripts.", cmds.Serve)
	parser.AddCommand("watch", "Run scheduled syncs", "Run syncs on a cron schedule until interrupted.", cmds.Watch)
	parser.AddCommand("purge", "Delete ALL calwatch data", "Delete ALL calwatch data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the calwatch CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("calwatch %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
