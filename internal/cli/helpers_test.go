package cli

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30d", 30 * 24 * time.Hour, true},
		{"7d", 7 * 24 * time.Hour, true},
		{"24h", 24 * time.Hour, true},
		{"2w", 14 * 24 * time.Hour, true},
		{"90m", 90 * time.Minute, true},
		{"", 0, false},
		{"d", 0, false},
		{"30x", 0, false},
		{"abc", 0, false},
	}

	for _, tc := range cases {
		got, err := parseDuration(tc.in)
		if tc.ok {
			require.NoError(t, err, "parseDuration(%q)", tc.in)
			assert.Equal(t, tc.want, got, "parseDuration(%q)", tc.in)
		} else {
			assert.Error(t, err, "parseDuration(%q)", tc.in)
		}
	}
}

func TestParseSince_Empty(t *testing.T) {
	got, err := parseSince("", time.Now())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestParseSince_Duration(t *testing.T) {
	now := time.Date(2025, 9, 21, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)

	got, err = parseSince("7d", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), got)
}

func TestParseSince_Timestamps(t *testing.T) {
	now := time.Now()

	got, err := parseSince("2025-09-21T09:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 21, 9, 0, 0, 0, time.UTC), got.UTC())

	got, err = parseSince("2025-09-21T09:00:00", now)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())

	got, err = parseSince("2025-09-21", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-21", got.Format("2006-01-02"))
}

func TestParseSince_Invalid(t *testing.T) {
	_, err := parseSince("yesterday", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --since value")
}

func TestValidateDate(t *testing.T) {
	assert.NoError(t, validateDate("2025-09-21"))
	assert.Error(t, validateDate("21-09-2025"))
	assert.Error(t, validateDate("2025-9-1"))
	assert.Error(t, validateDate("not a date"))
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"title", "start_time"},
		[][]string{
			{"Standup", "2025-09-21T09:00:00"},
			{"Planning Session", "2025-09-21T14:00:00"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "title")
	assert.Contains(t, lines[0], "start_time")
	assert.Contains(t, lines[1], "---")
	assert.Contains(t, lines[2], "Standup")
	assert.Contains(t, lines[3], "Planning Session")

	// Columns are padded to the widest cell.
	assert.Equal(t, len(lines[1]), len(lines[3]))
}

func TestWriteCSV(t *testing.T) {
	out := captureOutput(t, func() {
		_ = writeCSV(os.Stdout, []string{"title", "meeting_link"}, [][]string{
			{"Standup", "https://zoom.us/j/1"},
			{"Notes, with comma", ""},
		})
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "title,meeting_link", lines[0])
	assert.Equal(t, "Standup,https://zoom.us/j/1", lines[1])
	assert.Equal(t, `"Notes, with comma",`, lines[2])
}
