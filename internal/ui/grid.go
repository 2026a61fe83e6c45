package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/Warpdrop/meet/internal/call"
	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
	"github.com/charmbracelet/lipgloss"
	pion "github.com/pion/webrtc/v4"
)

const (
	minTileWidth  = 12
	minTileHeight = 4
)

// placement is where one tile lands: row index and cell offset within it.
type placement struct {
	row, cell int
}

// place walks the spans like a CSS grid with auto placement: regular spans
// take the next free cells, a span with a start line jumps to that cell,
// opening a new row if the cursor is already past it.
func place(g layout.Grid) []placement {
	cells := g.Cells()
	out := make([]placement, len(g.Spans))
	row, cursor := 0, 0
	for i, s := range g.Spans {
		start := cursor
		if !s.IsRegular() {
			start = s.Start - 1
			if start < cursor {
				row++
			}
		}
		if start+s.Cells > cells {
			row++
			if s.IsRegular() {
				start = 0
			}
		}
		out[i] = placement{row: row, cell: start}
		cursor = start + s.Cells
	}
	return out
}

// RenderGrid draws the board into a width x height terminal area.
func RenderGrid(snap call.BoardSnapshot, width, height int) string {
	if len(snap.Tiles) == 0 {
		return MutedStyle.Render(IconWaiting + " Waiting for others to join...")
	}

	container := layout.Size{
		Width:  float64(width) * layout.DefaultContainer.Width / 100,
		Height: float64(height) * layout.DefaultContainer.Height / 100,
	}
	tileMax := snap.Grid.TileMax(container)
	tileW := max(int(tileMax.Width), minTileWidth)
	tileH := max(int(tileMax.Height), minTileHeight)
	cellW := tileW / layout.CellsPerTile

	var rows [][]string
	var offsets []int
	for i, p := range place(snap.Grid) {
		for len(rows) <= p.row {
			rows = append(rows, nil)
			offsets = append(offsets, -1)
		}
		if offsets[p.row] < 0 {
			offsets[p.row] = p.cell
		}
		rows[p.row] = append(rows[p.row], renderTile(snap.Tiles[i], tileW, tileH))
	}

	lines := make([]string, len(rows))
	for i, r := range rows {
		line := lipgloss.JoinHorizontal(lipgloss.Top, r...)
		lines[i] = lipgloss.NewStyle().PaddingLeft(offsets[i] * cellW).Render(line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTile(t call.Tile, width, height int) string {
	style := tileStyle(t.State)

	var b strings.Builder
	fmt.Fprintf(&b, "%s peer %d\n", IconPeer, t.Peer)
	b.WriteString(t.State.String())
	if t.StreamID != "" {
		fmt.Fprintf(&b, "\n%s %s", IconVideo, truncateString(t.StreamID, width-6))
	}

	// Border takes one cell on every side.
	return style.Width(width - 2).Height(height - 2).Render(b.String())
}

func tileStyle(state pion.ICEConnectionState) lipgloss.Style {
	switch state {
	case pion.ICEConnectionStateConnected, pion.ICEConnectionStateCompleted:
		return TileConnectedStyle
	case pion.ICEConnectionStateDisconnected:
		return TileDegradedStyle
	case pion.ICEConnectionStateFailed, pion.ICEConnectionStateClosed:
		return TileFailedStyle
	default:
		return TilePendingStyle
	}
}

func truncateString(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
