package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/calwatch/internal/server"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	store, db, cfg, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	log := newLogger(c.globals, cfg)

	host := cfg.Serve.Host
	if c.Host != "" {
		host = c.Host
	}
	port := cfg.Serve.Port
	if c.Port != 0 {
		port = c.Port
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := server.New(addr, store, &log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("query server: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
