package ui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/journal"
	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

func styledTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// CallSummary is printed when the call screen exits.
type CallSummary struct {
	CallID   string
	Self     int64
	Peers    int
	Duration time.Duration
	Failures int
}

func CallSummaryView(s CallSummary) string {
	rows := [][]string{
		{"Call", s.CallID},
		{"Peer ID", strconv.FormatInt(s.Self, 10)},
		{"Peers seen", strconv.Itoa(s.Peers)},
		{"Duration", FormatTimeDuration(s.Duration)},
		{"Failures", strconv.Itoa(s.Failures)},
	}
	return styledTable([]string{"Metric", "Value"}, rows).Render()
}

func RenderCallSummary(title string, s CallSummary) {
	fmt.Println(TitleStyle.Render(title))
	fmt.Println(CallSummaryView(s))
}

// GridView describes a computed layout, one row per tile.
func GridView(g layout.Grid) string {
	rows := make([][]string, len(g.Spans))
	for i, s := range g.Spans {
		rows[i] = []string{strconv.Itoa(i + 1), s.String()}
	}

	orientation := "portrait"
	if g.Landscape {
		orientation = "landscape"
	}
	title := fmt.Sprintf("%s %s, %s", IconVideo, g.Columns, orientation)
	return TitleStyle.Render(title) + "\n" + styledTable([]string{"Tile", "Span"}, rows).Render()
}

// JournalView renders journal entries followed by per-kind totals.
func JournalView(entries []journal.Entry) string {
	if len(entries) == 0 {
		return MutedStyle.Render("Journal is empty")
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"Time", "Call", "Peer", "Kind", "Detail"})
	for _, e := range entries {
		peer := "-"
		if e.Peer != 0 {
			peer = strconv.FormatInt(int64(e.Peer), 10)
		}
		t.AppendRow(prettytable.Row{
			e.At.Format("15:04:05.000"),
			shortID(e.CallID),
			peer,
			e.Kind,
			truncateString(e.Detail, 60),
		})
	}

	sum := journal.Summarize(entries)
	kinds := make([]string, 0, len(sum.Counts))
	for k, n := range sum.Counts {
		kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
	}
	slices.Sort(kinds)

	t.AppendFooter(prettytable.Row{
		FormatTimeDuration(sum.To.Sub(sum.From)),
		fmt.Sprintf("%d calls", len(sum.Calls)),
		fmt.Sprintf("%d peers", len(sum.Peers)),
		"",
		strings.Join(kinds, " "),
	})
	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatTimeDuration formats duration to human readable string
func FormatTimeDuration(d time.Duration) string {
	seconds := int(d.Seconds()) % 60
	minutes := int(d.Minutes()) % 60
	hours := int(d.Hours())

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	} else {
		return fmt.Sprintf("%ds", seconds)
	}
}
