package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/BioHazard786/Warpdrop/meet/internal/call"
	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
	"github.com/BioHazard786/Warpdrop/meet/internal/media"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	tea "github.com/charmbracelet/bubbletea"
)

type fakeController struct {
	mu      sync.Mutex
	joins   int
	hangups int
	sizes   [][2]int
	joinErr error
}

func (c *fakeController) Join() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins++
	return c.joinErr
}

func (c *fakeController) Hangup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangups++
	return nil
}

func (c *fakeController) Resize(w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizes = append(c.sizes, [2]int{w, h})
}

type fakeToggler struct {
	enabled map[media.Kind]bool
}

func (f *fakeToggler) Enabled(k media.Kind) bool { return f.enabled[k] }

func (f *fakeToggler) Toggle(k media.Kind) (bool, error) {
	if k != media.Video && k != media.Audio {
		return false, media.ErrUnknownKind
	}
	f.enabled[k] = !f.enabled[k]
	return f.enabled[k], nil
}

func newTestModel() (*callModel, *fakeController, *fakeToggler) {
	ctrl := &fakeController{}
	tog := &fakeToggler{enabled: map[media.Kind]bool{media.Video: true, media.Audio: true}}
	ui := NewCallUI(1, ctrl, tog)
	return ui.model, ctrl, tog
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *callModel, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	if msg := cmd(); msg != nil {
		m.Update(msg)
	}
}

func TestCallModel_JoinRunsOffLoop(t *testing.T) {
	m, ctrl, _ := newTestModel()

	_, cmd := m.Update(key("c"))
	if !m.busy {
		t.Fatalf("model not busy after c")
	}
	if ctrl.joins != 0 {
		t.Fatalf("Join called inside Update")
	}

	// A second press while busy does nothing.
	if _, again := m.Update(key("c")); again != nil {
		t.Fatalf("second join issued while busy")
	}

	run(t, m, cmd)
	if ctrl.joins != 1 || m.busy {
		t.Fatalf("joins=%d busy=%v", ctrl.joins, m.busy)
	}
}

func TestCallModel_JoinErrorIsShown(t *testing.T) {
	m, ctrl, _ := newTestModel()
	ctrl.joinErr = call.ErrNotAuthenticated

	_, cmd := m.Update(key("c"))
	run(t, m, cmd)

	if !strings.Contains(m.View(), call.ErrNotAuthenticated.Error()) {
		t.Fatalf("view does not show the join error")
	}
}

func TestCallModel_HangupOnlyInCall(t *testing.T) {
	m, ctrl, _ := newTestModel()

	if _, cmd := m.Update(key("h")); cmd != nil {
		t.Fatalf("hang up issued outside a call")
	}

	m.Update(ViewMsg{Self: 1, Status: signaling.StatusOn, InCall: true, Board: call.BoardSnapshot{Grid: layout.Compute(0, true)}})
	_, cmd := m.Update(key("h"))
	run(t, m, cmd)
	if ctrl.hangups != 1 {
		t.Fatalf("hangups=%d, want 1", ctrl.hangups)
	}
}

func TestCallModel_ResizeDoublesHeight(t *testing.T) {
	m, ctrl, _ := newTestModel()

	_, cmd := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	run(t, m, cmd)

	if len(ctrl.sizes) != 1 {
		t.Fatalf("Resize called %d times", len(ctrl.sizes))
	}
	if got, want := ctrl.sizes[0], [2]int{100, (30 - chromeHeight) * cellAspect}; got != want {
		t.Fatalf("Resize(%v), want %v", got, want)
	}
}

func TestCallModel_ToggleMedia(t *testing.T) {
	m, _, tog := newTestModel()

	m.Update(key("v"))
	if tog.enabled[media.Video] {
		t.Fatalf("video still enabled after v")
	}
	if !strings.Contains(m.View(), "video off") {
		t.Fatalf("view does not show the video toggle")
	}

	m.Update(key("a"))
	if tog.enabled[media.Audio] {
		t.Fatalf("audio still enabled after a")
	}
}

func TestCallModel_Failures(t *testing.T) {
	m, _, _ := newTestModel()

	m.Update(FailureMsg{Err: &call.OpError{Class: call.ClassStaleReference, Op: call.OpDispatch, Peer: 9, Err: call.ErrUnknownPeer}})
	if len(m.notices) != 0 {
		t.Fatalf("stale reference shown to the user")
	}

	for i := 0; i < maxNotices+2; i++ {
		m.Update(FailureMsg{Err: &call.OpError{Class: call.ClassNegotiation, Op: call.OpCreateOffer, Peer: 2, Err: errors.New("boom")}})
	}
	if len(m.notices) != maxNotices {
		t.Fatalf("notices=%d, want %d", len(m.notices), maxNotices)
	}
}

func TestCallModel_ViewStatus(t *testing.T) {
	m, _, _ := newTestModel()
	if !strings.Contains(m.View(), "OFF") {
		t.Fatalf("initial view should show OFF")
	}

	m.Update(ViewMsg{Self: 1, Status: signaling.StatusOn})
	out := m.View()
	if !strings.Contains(out, "ON") || !strings.Contains(out, "Press c to join") {
		t.Fatalf("view=%q", out)
	}
}

func TestCallModel_Quit(t *testing.T) {
	m, _, _ := newTestModel()
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatalf("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q did not quit")
	}
	if m.View() != "" {
		t.Fatalf("view not cleared after quit")
	}
}

func TestCallModel_JoinOnStart(t *testing.T) {
	ctrl := &fakeController{}
	screen := NewCallUI(1, ctrl, &fakeToggler{enabled: map[media.Kind]bool{}})
	screen.JoinOnStart()

	if cmd := screen.model.Init(); cmd == nil {
		t.Fatalf("Init returned no command")
	}
	if !screen.model.busy {
		t.Fatalf("model not busy while joining on start")
	}
}
