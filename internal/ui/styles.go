package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	Primary    = lipgloss.Color("#22d3ee") // cyan accent
	Secondary  = lipgloss.Color("#7C3AED")
	Success    = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Muted      = lipgloss.Color("#6B7280")
	Foreground = lipgloss.Color("#F9FAFB")
	Background = lipgloss.Color("#111827")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)
)

// Header badges: signaling status and call state.
var (
	badge = lipgloss.NewStyle().Padding(0, 1)

	StatusOnStyle  = badge.Foreground(Background).Background(Success).Bold(true)
	StatusOffStyle = badge.Foreground(Foreground).Background(Error).Bold(true)
	InCallStyle    = badge.Foreground(Foreground).Background(Secondary)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 2)

	FooterStyle = MutedStyle.MarginTop(1)
)

// Tile borders follow the peer's ICE state.
var (
	tileBase = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Align(lipgloss.Center, lipgloss.Center)

	TileConnectedStyle = tileBase.BorderForeground(Success)
	TilePendingStyle   = tileBase.BorderForeground(Primary)
	TileDegradedStyle  = tileBase.BorderForeground(Warning)
	TileFailedStyle    = tileBase.BorderForeground(Error)
)

var (
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	TableRowStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("255"))
	TableRowAltStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconVideo   = "📹"
	IconAudio   = "🎙️"
	IconWaiting = "⏳"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintInfof(format string, args ...any) {
	fmt.Printf("%s %s\n", IconInfo, fmt.Sprintf(format, args...))
}
