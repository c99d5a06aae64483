// Package reconcile implements the reconciliation pass: diffing a freshly
// fetched batch of events against the persisted snapshot and producing
// the audit trail for every lifecycle transition.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/calwatch/internal/event"
	"github.com/runnerr0/calwatch/internal/storage"
)

// ErrEmptyBatch is returned when a zero-length batch arrives for a
// window that has active events. That is a suspected upstream fetch
// failure, never ground truth: marking everything removed on it would
// wipe the snapshot.
var ErrEmptyBatch = errors.New("empty batch for non-empty window, refusing removal pass")

// Store is the slice of the storage layer the reconciler needs.
type Store interface {
	ActiveInWindow(ctx context.Context, startDate, endDate string) ([]storage.Event, error)
	GetEvent(ctx context.Context, uid string) (*storage.Event, error)
	Apply(ctx context.Context, set storage.ApplySet) error
}

// Window is the inclusive date range ("2006-01-02" bounds) the upstream
// enumeration tool was actually asked to report.
type Window struct {
	Start string
	End   string
}

// Request carries the parameters of one reconciliation pass. Lookback
// is the number of days before today included in the window: a positive
// value signals a retroactive sync in which absent past events must not
// be treated as removed. DryRun computes the plan without committing.
type Request struct {
	Window   Window
	Lookback int
	DryRun   bool
}

// Plan is the computed operation set of one pass. When Applied is
// false (dry run or nothing to write) persisted state was not touched.
type Plan struct {
	Set     storage.ApplySet
	Skipped int
	Applied bool
}

// Changes returns the audit entries the plan appends (or would append,
// under dry run), in commit order.
func (p *Plan) Changes() []storage.ChangeRecord {
	return p.Set.ChangeRecords()
}

// Reconciler merges fetched batches into the snapshot store.
type Reconciler struct {
	store Store
	log   zerolog.Logger

	// Now is the wall clock, injectable for tests.
	Now func() time.Time
}

// New creates a Reconciler using the real clock.
func New(store Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log, Now: time.Now}
}

// Reconcile diffs batch against the stored snapshot slice for the
// request window and commits the resulting writes in one transaction.
//
// Per event: an identity already active (in the window, or anywhere in
// the table for events whose start precedes the window) gets a silent
// last_seen/meeting_link refresh; an unknown identity is inserted with
// an "added" audit entry, preceded by an "updated-old-marked-deleted"
// entry for the prior same-title identity when the event looks like an
// edit. Identities expected in the window but absent from the batch are
// marked removed, except past-dated ones under a lookback sync.
func (r *Reconciler) Reconcile(ctx context.Context, batch []event.Event, req Request) (*Plan, error) {
	now := r.Now()

	snapshot, err := r.store.ActiveInWindow(ctx, req.Window.Start, req.Window.End)
	if err != nil {
		return nil, fmt.Errorf("load snapshot window: %w", err)
	}

	active := make(map[string]storage.Event, len(snapshot))
	for _, row := range snapshot {
		active[row.UID] = row
	}

	plan := &Plan{Set: storage.ApplySet{Now: now}}

	valid := batch[:0:0]
	for _, e := range batch {
		if e.Malformed() {
			plan.Skipped++
			r.log.Warn().
				Str("title", e.Title).
				Str("start", e.Start).
				Str("end", e.End).
				Msg("skipping malformed event, missing start or end")
			continue
		}
		valid = append(valid, e)
	}

	// A batch with nothing usable against a non-empty window is a
	// suspected fetch failure, not an empty calendar.
	if len(valid) == 0 && len(snapshot) > 0 {
		return nil, fmt.Errorf("window %s..%s has %d active events: %w",
			req.Window.Start, req.Window.End, len(snapshot), ErrEmptyBatch)
	}

	// Identities observed in this batch. Needed up front so edit
	// matching never retires an identity the batch still reports.
	batchUIDs := make(map[string]bool, len(valid))
	for _, e := range valid {
		batchUIDs[e.UID] = true
	}

	seen := make(map[string]bool, len(valid))
	retired := make(map[string]bool)

	for _, e := range valid {
		if seen[e.UID] {
			continue // in-batch duplicate, idempotent after the first
		}
		seen[e.UID] = true

		if _, ok := active[e.UID]; ok {
			plan.Set.Refreshes = append(plan.Set.Refreshes, storage.Refresh{
				UID:         e.UID,
				MeetingLink: e.MeetingLink,
			})
			continue
		}

		// Not in the windowed slice, but possibly still known: a
		// multi-day or all-day event starts before the window yet keeps
		// showing up in every fetch. Consult the full table so a live
		// identity is refreshed, never re-added.
		row, err := r.store.GetEvent(ctx, e.UID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("lookup %s: %w", e.UID, err)
		}
		if row != nil && !row.Deleted {
			plan.Set.Refreshes = append(plan.Set.Refreshes, storage.Refresh{
				UID:         e.UID,
				MeetingLink: e.MeetingLink,
			})
			continue
		}

		// New identity (or resurrection of a deleted one). A same-title
		// active identity at a different time signature is an edit: it
		// is retired before the replacement is added.
		if old, ok := matchPrior(snapshot, e, batchUIDs, retired); ok {
			retired[old.UID] = true
			plan.Set.Retires = append(plan.Set.Retires, old)
		}

		plan.Set.Adds = append(plan.Set.Adds, storage.Event{
			UID:         e.UID,
			Title:       e.Title,
			StartTime:   e.Start,
			EndTime:     e.End,
			MeetingLink: e.MeetingLink,
		})
	}

	today := now.Format("2006-01-02")
	for _, row := range snapshot {
		if seen[row.UID] || retired[row.UID] {
			continue
		}
		// A retroactive sync widens the window past days the source
		// does not reliably re-report; absence there is not removal.
		if req.Lookback > 0 && startDate(row.StartTime) < today {
			continue
		}
		plan.Set.Removes = append(plan.Set.Removes, row)
	}

	if req.DryRun || plan.Set.Empty() {
		return plan, nil
	}

	if err := r.store.Apply(ctx, plan.Set); err != nil {
		return nil, fmt.Errorf("apply reconciliation (retryable): %w", err)
	}
	plan.Applied = true

	return plan, nil
}

// matchPrior finds the stored identity an edited event replaces: same
// title, still active in the window, not reported by this batch, and
// not already claimed by another add. Ties prefer the closest
// start_time to the new event, then the earliest first_seen.
func matchPrior(snapshot []storage.Event, e event.Event, batchUIDs, retired map[string]bool) (storage.Event, bool) {
	var best storage.Event
	found := false

	for _, row := range snapshot {
		if row.Title != e.Title || row.UID == e.UID {
			continue
		}
		if batchUIDs[row.UID] || retired[row.UID] {
			continue
		}
		if !found || closerStart(row, best, e.Start) {
			best = row
			found = true
		}
	}

	return best, found
}

// closerStart reports whether candidate beats current for the same
// title: smaller start-time distance wins, earlier first_seen breaks
// exact distance ties.
func closerStart(candidate, current storage.Event, target string) bool {
	cd := startDistance(candidate.StartTime, target)
	bd := startDistance(current.StartTime, target)
	if cd != bd {
		return cd < bd
	}
	return candidate.FirstSeen.Before(current.FirstSeen)
}

const wallClockLayout = "2006-01-02T15:04:05"

// startDistance measures how far apart two wall-clock strings are.
// Unparseable values sort last.
func startDistance(a, b string) time.Duration {
	ta, errA := time.Parse(wallClockLayout, a)
	tb, errB := time.Parse(wallClockLayout, b)
	if errA != nil || errB != nil {
		return time.Duration(1<<63 - 1)
	}
	d := ta.Sub(tb)
	if d < 0 {
		d = -d
	}
	return d
}

// startDate extracts the "2006-01-02" date prefix of a wall-clock string.
func startDate(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
