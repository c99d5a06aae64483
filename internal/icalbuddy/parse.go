package icalbuddy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/runnerr0/calwatch/internal/event"
)

// Line grammar. icalBuddy prints one bullet line per event title,
// followed by indented detail lines (date/time, location, notes,
// attendees) until the next bullet.
var (
	bulletRE    = regexp.MustCompile(`^\s*[•*]\s*`)
	organizerRE = regexp.MustCompile(`\s*\([^)]*@[^)]*\)$`)
	ordinalRE   = regexp.MustCompile(`(?i)(\d+)(st|nd|rd|th)`)

	// "15 Sep 2025 - 29 Sep 2025" and "2025-09-15 - 2025-09-29"
	dateRangeWordsRE = regexp.MustCompile(`(\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})\s*-\s*(\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4})`)
	dateRangeISORE   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*-\s*(\d{4}-\d{2}-\d{2})`)

	// "2025-11-02 at 11:30 AM - 12:00 PM"
	timeRangeAtRE = regexp.MustCompile(`(?i)(\d{4}-\d{2}-\d{2})\s+at\s+(\d{1,2}:\d{2}(?:\s*[APMapm.]{2,4})?)\s*-\s*(\d{1,2}:\d{2}(?:\s*[APMapm.]{2,4})?)`)
	// "2025-09-21 11:30 - 12:00" or "11:30 AM - 12:00 PM"
	timeRangeRE = regexp.MustCompile(`(?i)(?:(\d{4}-\d{2}-\d{2})\s+)?(\d{1,2}:\d{2}(?:\s*[APMapm.]{2,4})?)\s*-\s*(\d{1,2}:\d{2}(?:\s*[APMapm.]{2,4})?)`)

	bareDateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Parse converts icalBuddy output lines into raw event tuples. Timed
// events get "YYYY-MM-DDTHH:MM:SS" bounds; all-day and multi-day events
// cover whole days (T00:00:00 to T23:59:59). Detail lines are kept as
// the body so the normalizer can scan them for meeting links.
// defaultDate supplies the day for time ranges printed without one.
func Parse(lines []string, defaultDate time.Time) []event.Raw {
	p := parser{defaultDate: defaultDate.Format("2006-01-02")}

	for _, raw := range lines {
		line := normalizeSpaces(strings.TrimRight(raw, " "))
		if strings.TrimSpace(line) == "" {
			continue
		}

		if bulletRE.MatchString(line) {
			p.commit()
			title := bulletRE.ReplaceAllString(line, "")
			// Drop the "(organizer@example.com)" suffix some calendars append.
			title = strings.TrimSpace(organizerRE.ReplaceAllString(strings.TrimSpace(title), ""))
			p.open(title)
			continue
		}

		if p.active {
			p.detail(line)
		}
	}

	p.commit()
	return p.events
}

type parser struct {
	defaultDate string

	active bool
	title  string
	start  string
	end    string
	body   []string

	events []event.Raw
}

func (p *parser) open(title string) {
	p.active = true
	p.title = title
	p.start = ""
	p.end = ""
	p.body = nil
}

func (p *parser) commit() {
	if !p.active {
		return
	}
	p.events = append(p.events, event.Raw{
		Title: p.title,
		Start: p.start,
		End:   p.end,
		Body:  strings.Join(p.body, "\n"),
	})
	p.active = false
}

// detail buffers a non-title line and, until the bounds are known,
// tries each date/time form on it. The first match wins.
func (p *parser) detail(line string) {
	p.body = append(p.body, line)
	if p.start != "" && p.end != "" {
		return
	}

	if m := dateRangeWordsRE.FindStringSubmatch(line); m != nil {
		if s, okS := parseDate(m[1]); okS {
			if e, okE := parseDate(m[2]); okE {
				p.start, p.end = s+"T00:00:00", e+"T23:59:59"
				return
			}
		}
	}

	if m := dateRangeISORE.FindStringSubmatch(line); m != nil {
		if s, okS := parseDate(m[1]); okS {
			if e, okE := parseDate(m[2]); okE {
				p.start, p.end = s+"T00:00:00", e+"T23:59:59"
				return
			}
		}
	}

	if m := timeRangeAtRE.FindStringSubmatch(line); m != nil {
		if p.setTimes(m[1], m[2], m[3]) {
			return
		}
	}

	if m := timeRangeRE.FindStringSubmatch(line); m != nil {
		date := m[1]
		if date == "" {
			date = p.defaultDate
		}
		if p.setTimes(date, m[2], m[3]) {
			return
		}
	}

	trimmed := strings.TrimSpace(line)
	if bareDateRE.MatchString(trimmed) {
		p.start, p.end = trimmed+"T00:00:00", trimmed+"T23:59:59"
	}
}

func (p *parser) setTimes(date, from, to string) bool {
	dateISO, ok := parseDate(date)
	if !ok {
		return false
	}
	h1, m1, ok1 := parseClock(from)
	h2, m2, ok2 := parseClock(to)
	if !ok1 || !ok2 {
		return false
	}
	p.start = fmt.Sprintf("%sT%02d:%02d:00", dateISO, h1, m1)
	p.end = fmt.Sprintf("%sT%02d:%02d:00", dateISO, h2, m2)
	return true
}

// parseDate turns "15 Sep 2025", "September 15 2025" or "2025-09-15"
// into a "2006-01-02" string.
func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(ordinalRE.ReplaceAllString(s, "$1"))
	formats := []string{"2 Jan 2006", "2 January 2006", "2006-01-02", "Jan 2 2006", "January 2 2006"}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// parseClock parses "11:30", "11:30 AM" or "11:30PM" into a 24-hour
// hour/minute pair.
func parseClock(s string) (hour, minute int, ok bool) {
	t := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ".", ""))
	for _, f := range []string{"3:04 PM", "3:04PM", "15:04"} {
		if parsed, err := time.Parse(f, t); err == nil {
			return parsed.Hour(), parsed.Minute(), true
		}
	}
	return 0, 0, false
}
