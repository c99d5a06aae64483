package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// renderTable formats rows as a padded text table. Field order is the
// stable contract downstream scripts rely on, so callers pass headers
// and rows already ordered.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	const sep = "  "

	for i, h := range headers {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(pad(h, widths[i]))
	}
	b.WriteString("\n")

	for i, w := range widths {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteString(pad(cell, widths[i]))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// writeCSV emits headers and rows in the same stable field order.
func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
