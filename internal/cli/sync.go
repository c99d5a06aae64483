package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/calwatch/internal/config"
	"github.com/runnerr0/calwatch/internal/event"
	"github.com/runnerr0/calwatch/internal/icalbuddy"
	"github.com/runnerr0/calwatch/internal/reconcile"
)

// fetchFunc produces the raw event tuples for a lookback window ending
// today. The default implementation shells out to icalBuddy; tests
// inject their own.
type fetchFunc func(ctx context.Context, lookbackDays int, now time.Time) ([]event.Raw, error)

// Execute implements the go-flags Commander interface for SyncCommand.
func (c *SyncCommand) Execute(args []string) error {
	store, db, cfg, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	log := newLogger(c.globals, cfg)

	fetch := c.fetch
	if fetch == nil {
		fetch = icalBuddyFetch(cfg)
	}

	rec := reconcile.New(store, log)
	return c.runSync(context.Background(), rec, cfg, log, fetch)
}

// icalBuddyFetch returns the production fetcher: run icalBuddy for the
// window, parse its output into raw tuples.
func icalBuddyFetch(cfg *config.Config) fetchFunc {
	return func(ctx context.Context, lookbackDays int, now time.Time) ([]event.Raw, error) {
		runner := icalbuddy.NewRunner(time.Duration(cfg.Sync.FetchTimeoutSeconds) * time.Second)
		lines, err := runner.Fetch(ctx, lookbackDays, now)
		if err != nil {
			return nil, err
		}
		return icalbuddy.Parse(lines, now), nil
	}
}

// runSync performs one fetch → normalize → reconcile pass.
func (c *SyncCommand) runSync(ctx context.Context, rec *reconcile.Reconciler, cfg *config.Config, log zerolog.Logger, fetch fetchFunc) error {
	now := rec.Now()

	lookback := c.Lookback
	if lookback == 0 {
		lookback = cfg.Sync.LookbackDays
	}
	if lookback < 0 {
		return fmt.Errorf("--lookback must be >= 0, got %d", lookback)
	}

	raws, err := fetch(ctx, lookback, now)
	if err != nil {
		// A failed fetch never reaches the store: no batch, no
		// reconciliation, nothing marked removed.
		return fmt.Errorf("upstream fetch: %w", err)
	}

	batch := make([]event.Event, len(raws))
	for i, raw := range raws {
		batch[i] = event.Normalize(raw, cfg.Sync.MeetingDomains)
	}

	req := reconcile.Request{
		Window: reconcile.Window{
			Start: now.AddDate(0, 0, -lookback).Format("2006-01-02"),
			End:   now.Format("2006-01-02"),
		},
		Lookback: lookback,
		DryRun:   c.DryRun,
	}

	plan, err := rec.Reconcile(ctx, batch, req)
	if err != nil {
		return err
	}

	log.Debug().
		Str("window_start", req.Window.Start).
		Str("window_end", req.Window.End).
		Int("batch", len(batch)).
		Bool("dry_run", c.DryRun).
		Msg("reconciliation pass finished")

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(plan, req, len(batch))
	}
	return c.printHuman(plan, req, len(batch))
}

func (c *SyncCommand) printHuman(plan *reconcile.Plan, req reconcile.Request, batchSize int) error {
	prefix := "Processed"
	if c.DryRun {
		prefix = "DRY RUN: would have processed"
	}

	fmt.Printf("%s %d events for %s..%s (lookback %dd)\n",
		prefix, batchSize, req.Window.Start, req.Window.End, req.Lookback)
	fmt.Printf("  added:     %d\n", len(plan.Set.Adds))
	fmt.Printf("  refreshed: %d\n", len(plan.Set.Refreshes))
	fmt.Printf("  retired:   %d\n", len(plan.Set.Retires))
	fmt.Printf("  removed:   %d\n", len(plan.Set.Removes))
	if plan.Skipped > 0 {
		fmt.Printf("  skipped:   %d (malformed)\n", plan.Skipped)
	}

	if c.DryRun {
		for _, ch := range plan.Changes() {
			fmt.Printf("  %-26s %s (%s - %s)\n", ch.Action, ch.Title, ch.StartTime, ch.EndTime)
		}
	}

	return nil
}

func (c *SyncCommand) printJSON(plan *reconcile.Plan, req reconcile.Request, batchSize int) error {
	type changeOut struct {
		Action      string `json:"action"`
		UID         string `json:"uid"`
		Title       string `json:"title"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
		MeetingLink string `json:"meeting_link"`
	}

	changes := plan.Changes()
	outChanges := make([]changeOut, len(changes))
	for i, ch := range changes {
		outChanges[i] = changeOut{
			Action:      string(ch.Action),
			UID:         ch.UID,
			Title:       ch.Title,
			StartTime:   ch.StartTime,
			EndTime:     ch.EndTime,
			MeetingLink: ch.MeetingLink,
		}
	}

	out := map[string]interface{}{
		"window_start": req.Window.Start,
		"window_end":   req.Window.End,
		"lookback":     req.Lookback,
		"dry_run":      c.DryRun,
		"batch":        batchSize,
		"added":        len(plan.Set.Adds),
		"refreshed":    len(plan.Set.Refreshes),
		"retired":      len(plan.Set.Retires),
		"removed":      len(plan.Set.Removes),
		"skipped":      plan.Skipped,
		"applied":      plan.Applied,
		"changes":      outChanges,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
