package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/runnerr0/calwatch/internal/reconcile"
)

// Execute implements the go-flags Commander interface for WatchCommand.
// It runs sync passes on a cron schedule until interrupted. Each pass
// is independent: a failed run is logged and the next tick proceeds.
func (c *WatchCommand) Execute(args []string) error {
	store, db, cfg, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	log := newLogger(c.globals, cfg)

	schedule := cfg.Watch.Schedule
	if c.Schedule != "" {
		schedule = c.Schedule
	}

	rec := reconcile.New(store, log)
	sync := &SyncCommand{
		Lookback: c.Lookback,
		globals:  c.globals,
		version:  c.version,
	}
	fetch := icalBuddyFetch(cfg)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(schedule, func() {
		if err := sync.runSync(context.Background(), rec, cfg, log, fetch); err != nil {
			log.Error().Err(err).Msg("scheduled sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	log.Info().Str("schedule", schedule).Int("lookback", c.Lookback).Msg("watch mode started")
	scheduler.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	// Let an in-flight sync finish before returning.
	<-scheduler.Stop().Done()
	return nil
}
