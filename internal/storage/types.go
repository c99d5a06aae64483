package storage

import "time"

// Action classifies a lifecycle transition in the audit log.
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
	// ActionRetired marks the old identity of an edited event. The edit
	// itself is represented as this record followed by an "added" for
	// the new identity; start/end/title are never mutated in place.
	ActionRetired Action = "updated-old-marked-deleted"
)

// Event is one row of the snapshot table. UID is content-derived from
// (title, start, end); StartTime/EndTime are local wall-clock strings
// in the form "2006-01-02T15:04:05" with no timezone suffix, exactly
// as the calendar source reports them.
type Event struct {
	UID         string
	Title       string
	StartTime   string
	EndTime     string
	FirstSeen   time.Time
	LastSeen    time.Time
	MeetingLink string
	Deleted     bool
}

// ChangeRecord is one immutable row of the append-only changes table.
type ChangeRecord struct {
	Seq         int64
	Timestamp   time.Time
	Action      Action
	UID         string
	Title       string
	StartTime   string
	EndTime     string
	MeetingLink string
}

// Refresh updates the mutable fields of an existing identity:
// last_seen always, meeting_link when it changed. Link refreshes are
// silent (no audit entry).
type Refresh struct {
	UID         string
	MeetingLink string
}

// ApplySet is the write set of one reconciliation pass. Apply commits
// it in a single transaction: either everything lands or nothing does.
type ApplySet struct {
	Now       time.Time
	Adds      []Event
	Refreshes []Refresh
	Retires   []Event
	Removes   []Event
}

// Empty reports whether the set contains no writes at all.
func (s ApplySet) Empty() bool {
	return len(s.Adds) == 0 && len(s.Refreshes) == 0 &&
		len(s.Retires) == 0 && len(s.Removes) == 0
}

// ChangeRecords projects the audit entries the set will append, in the
// order Apply writes them: retires first, then adds, then removes.
// A retire therefore always precedes the add that replaced it.
func (s ApplySet) ChangeRecords() []ChangeRecord {
	var out []ChangeRecord
	for _, e := range s.Retires {
		out = append(out, ChangeRecord{
			Timestamp: s.Now, Action: ActionRetired, UID: e.UID,
			Title: e.Title, StartTime: e.StartTime, EndTime: e.EndTime,
			MeetingLink: e.MeetingLink,
		})
	}
	for _, e := range s.Adds {
		out = append(out, ChangeRecord{
			Timestamp: s.Now, Action: ActionAdded, UID: e.UID,
			Title: e.Title, StartTime: e.StartTime, EndTime: e.EndTime,
			MeetingLink: e.MeetingLink,
		})
	}
	for _, e := range s.Removes {
		out = append(out, ChangeRecord{
			Timestamp: s.Now, Action: ActionRemoved, UID: e.UID,
			Title: e.Title, StartTime: e.StartTime, EndTime: e.EndTime,
			MeetingLink: e.MeetingLink,
		})
	}
	return out
}

// Stats holds aggregate statistics about the calwatch database.
type Stats struct {
	TotalEvents  int64
	ActiveEvents int64
	TotalChanges int64
	OldestStart  string
	NewestStart  string
	LastChange   time.Time
}
