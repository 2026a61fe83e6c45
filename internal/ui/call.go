package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/Warpdrop/meet/internal/call"
	"github.com/BioHazard786/Warpdrop/meet/internal/media"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the part of the call manager the screen drives.
type Controller interface {
	Join() error
	Hangup() error
	Resize(width, height int)
}

// Toggler flips local media on and off.
type Toggler interface {
	Enabled(kind media.Kind) bool
	Toggle(kind media.Kind) (bool, error)
}

// ViewMsg carries a fresh call view into the program.
type ViewMsg call.View

// FailureMsg reports a contained failure to the user.
type FailureMsg struct {
	Err *call.OpError
}

type actionMsg struct {
	action string
	err    error
}

const (
	maxNotices    = 4
	chromeHeight  = 6
	cellAspect    = 2
	defaultWidth  = 80
	defaultHeight = 24
)

// CallUI runs the interactive call screen.
type CallUI struct {
	program *tea.Program
	model   *callModel
}

// NewCallUI builds the screen for the local user self.
func NewCallUI(self signaling.PeerID, ctrl Controller, local Toggler) *CallUI {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := &callModel{
		ctrl:    ctrl,
		local:   local,
		view:    call.View{Self: self, Status: signaling.StatusOff},
		spinner: s,
		width:   defaultWidth,
		height:  defaultHeight,
	}
	return &CallUI{
		model:   m,
		program: tea.NewProgram(m, tea.WithAltScreen()),
	}
}

// Run blocks until the user quits.
func (ui *CallUI) Run() error {
	_, err := ui.program.Run()
	return err
}

// SetView publishes a manager view. Safe to call from any goroutine.
func (ui *CallUI) SetView(v call.View) {
	ui.program.Send(ViewMsg(v))
}

// Failure shows a contained failure.
func (ui *CallUI) Failure(err *call.OpError) {
	ui.program.Send(FailureMsg{Err: err})
}

// JoinOnStart makes the screen join the call as soon as it is running.
func (ui *CallUI) JoinOnStart() {
	ui.model.autoJoin = true
}

// Quit stops the program.
func (ui *CallUI) Quit() {
	ui.program.Quit()
}

type callModel struct {
	ctrl    Controller
	local   Toggler
	view    call.View
	spinner spinner.Model

	width  int
	height int

	// busy is set while a join or hangup is in flight.
	busy     bool
	autoJoin bool
	notices  []string
	quitting bool
}

func (m *callModel) Init() tea.Cmd {
	if !m.autoJoin {
		return m.spinner.Tick
	}
	m.busy = true
	return tea.Batch(m.spinner.Tick, m.action("join", m.ctrl.Join))
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, m.resize()

	case ViewMsg:
		m.view = call.View(msg)

	case FailureMsg:
		if msg.Err.Class != call.ClassStaleReference {
			m.notice(msg.Err.Error())
		}

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.notice(fmt.Sprintf("%s: %v", msg.action, msg.err))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *callModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "c":
		if m.busy || m.view.InCall {
			return m, nil
		}
		m.busy = true
		return m, m.action("join", m.ctrl.Join)

	case "h":
		if m.busy || !m.view.InCall {
			return m, nil
		}
		m.busy = true
		return m, m.action("hang up", m.ctrl.Hangup)

	case "v":
		m.toggle(media.Video)

	case "a":
		m.toggle(media.Audio)
	}
	return m, nil
}

// action runs fn off the update loop; the manager publishes views back into
// the program and would otherwise wait on it.
func (m *callModel) action(name string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: name, err: fn()}
	}
}

// resize reports the grid area in square units: a terminal cell is about
// twice as tall as it is wide.
func (m *callModel) resize() tea.Cmd {
	w, h := m.width, max(m.height-chromeHeight, 1)*cellAspect
	return func() tea.Msg {
		m.ctrl.Resize(w, h)
		return nil
	}
}

func (m *callModel) toggle(kind media.Kind) {
	on, err := m.local.Toggle(kind)
	if err != nil {
		m.notice(err.Error())
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	m.notice(fmt.Sprintf("%s %s", kind, state))
}

func (m *callModel) notice(s string) {
	m.notices = append(m.notices, s)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m *callModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	if m.view.InCall {
		b.WriteString(RenderGrid(m.view.Board, m.width, max(m.height-chromeHeight, minTileHeight)))
	} else if m.busy {
		b.WriteString(fmt.Sprintf("%s Joining...", m.spinner.View()))
	} else {
		b.WriteString(MutedStyle.Render("Not in a call. Press c to join."))
	}
	b.WriteString("\n")

	for _, n := range m.notices {
		b.WriteString(WarningStyle.Render(IconWarning+" "+n) + "\n")
	}

	b.WriteString(FooterStyle.Render("c join • h hang up • v video • a audio • q quit"))
	return b.String()
}

func (m *callModel) header() string {
	status := StatusOffStyle.Render(string(signaling.StatusOff))
	if m.view.Status == signaling.StatusOn {
		status = StatusOnStyle.Render(string(signaling.StatusOn))
	}

	parts := []string{
		HeaderStyle.Render(fmt.Sprintf("%s peer %d", IconRoom, m.view.Self)),
		status,
	}
	if m.view.InCall {
		parts = append(parts, InCallStyle.Render(fmt.Sprintf("in call • %d", len(m.view.Board.Tiles))))
	}
	parts = append(parts,
		mediaBadge(IconVideo, m.local.Enabled(media.Video)),
		mediaBadge(IconAudio, m.local.Enabled(media.Audio)),
	)
	return strings.Join(parts, " ")
}

func mediaBadge(icon string, on bool) string {
	if on {
		return icon
	}
	return MutedStyle.Render(icon + " off")
}
