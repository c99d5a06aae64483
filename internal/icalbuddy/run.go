// Package icalbuddy invokes the icalBuddy enumeration tool and parses
// its text output into raw event tuples.
package icalbuddy

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrFetchFailed wraps every upstream failure mode: missing binary,
// timeout, non-zero exit. The caller must abort the reconciliation
// pass; a failed fetch never reaches the store.
var ErrFetchFailed = errors.New("icalBuddy fetch failed")

// Runner invokes icalBuddy with absolute date bounds.
type Runner struct {
	Binary  string
	Timeout time.Duration
}

// NewRunner returns a Runner with the default binary name and timeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{Binary: "icalBuddy", Timeout: timeout}
}

// Fetch runs icalBuddy for [today-lookbackDays, today] and returns its
// output as normalized lines. Dates are passed absolutely (-nrd, fixed
// date/time formats) so the parser sees one stable grammar. If the
// ranged invocation fails or prints nothing, it retries with
// eventsToday before giving up.
func (r *Runner) Fetch(ctx context.Context, lookbackDays int, now time.Time) ([]string, error) {
	today := now.Format("2006-01-02")
	start := now.AddDate(0, 0, -lookbackDays).Format("2006-01-02")

	out, err := r.run(ctx,
		"-nrd", "-df", "%Y-%m-%d", "-tf", "%I:%M %p",
		"eventsFrom:"+start, "to:"+today,
	)
	if err != nil || strings.TrimSpace(out) == "" {
		// Range form is flaky on some icalBuddy builds; today-only is
		// the last resort before reporting the fetch as failed.
		out, err = r.run(ctx, "-nrd", "-df", "%Y-%m-%d", "-tf", "%I:%M %p", "eventsToday")
		if err != nil {
			return nil, err
		}
	}

	return strings.Split(normalizeSpaces(out), "\n"), nil
}

func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: timed out after %s", ErrFetchFailed, r.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", ErrFetchFailed, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%w: %v (install with: brew install ical-buddy)", ErrFetchFailed, err)
	}

	return string(out), nil
}

// normalizeSpaces collapses the exotic whitespace icalBuddy emits
// (NBSP, narrow NBSP, thin space) into plain spaces.
func normalizeSpaces(s string) string {
	replacer := strings.NewReplacer(
		"\u00a0", " ",
		"\u202f", " ",
		"\u2009", " ",
		"\t", " ",
		"\r", "",
	)
	return replacer.Replace(s)
}
