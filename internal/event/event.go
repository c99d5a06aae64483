// Package event normalizes raw parsed calendar entries into canonical
// records with content-derived identity.
package event

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// Raw is one tuple produced by the upstream parser: title, start/end
// wall-clock strings, and the free-text block under the title line.
type Raw struct {
	Title string
	Start string
	End   string
	Body  string
}

// Event is a normalized calendar event. UID is derived from
// (Title, Start, End): the same title at the same instants is the same
// identity, across runs and across processes.
type Event struct {
	UID         string
	Title       string
	Start       string
	End         string
	MeetingLink string
}

// Malformed reports whether the event is missing its start or end and
// must be excluded from reconciliation.
func (e Event) Malformed() bool {
	return e.Start == "" || e.End == ""
}

// UID computes the canonical identity hash. No salt, no randomness:
// the value must be stable forever, it is the events table primary key.
func UID(title, start, end string) string {
	h := sha1.Sum([]byte(title + "||" + start + "||" + end))
	return hex.EncodeToString(h[:])
}

// Normalize converts a raw tuple into a canonical Event. Degenerate
// inputs pass through unmodified: empty titles are kept, start == end
// is a zero-duration event, start > end is upstream data fidelity and
// not corrected here.
func Normalize(raw Raw, meetingDomains []string) Event {
	return Event{
		UID:         UID(raw.Title, raw.Start, raw.End),
		Title:       raw.Title,
		Start:       raw.Start,
		End:         raw.End,
		MeetingLink: ExtractMeetingLink(raw.Body, meetingDomains),
	}
}

var urlRE = regexp.MustCompile(`(?i)https?://[^\s'")<>]+`)

// ExtractMeetingLink scans free text for the best video-conferencing
// URL. Domains are an ordered priority list: the first URL matching the
// highest-priority domain wins. If no configured domain matches, the
// first well-formed URL is returned; if none, the empty string.
func ExtractMeetingLink(body string, meetingDomains []string) string {
	var urls []string
	for _, m := range urlRE.FindAllString(body, -1) {
		u := strings.TrimRight(m, `.,;:)'"`)
		if u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return ""
	}

	for _, domain := range meetingDomains {
		for _, u := range urls {
			if strings.Contains(strings.ToLower(u), strings.ToLower(domain)) {
				return u
			}
		}
	}

	return urls[0]
}
