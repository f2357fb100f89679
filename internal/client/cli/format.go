package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/access"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/clock"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

const timeLayout = "2006-01-02 15:04"

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// formatRemaining renders a countdown as "3d 04h 05m 06s".
func formatRemaining(r clock.Remaining) string {
	if r.Unlocked {
		return "unlocked"
	}
	return fmt.Sprintf("%dd %02dh %02dm %02ds", r.Days, r.Hours, r.Minutes, r.Seconds)
}

// formatUnlock shows the unlock time in the local zone with a relative hint.
func formatUnlock(unlockAt, now time.Time) string {
	return fmt.Sprintf("%s (%s)", unlockAt.Local().Format(timeLayout), humanize.RelTime(unlockAt, now, "ago", "from now"))
}

// obscure masks text that must not be read yet. Whitespace is kept so the
// shape of the text stays recognisable.
func obscure(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('•')
	}
	return b.String()
}

// stateLabel is the short lock state shown in listings.
func stateLabel(v access.Verdict) string {
	if v.Unlocked {
		return "open"
	}
	return "locked"
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
