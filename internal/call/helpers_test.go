package call

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/media"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/BioHazard786/Warpdrop/meet/internal/transport/transporttest"
)

const testTimeout = 5 * time.Second

type fakeSignaler struct {
	mu    sync.Mutex
	auth  bool
	sent  []*signaling.Envelope
	relay func(*signaling.Envelope)
}

func (f *fakeSignaler) Send(env *signaling.Envelope) {
	f.mu.Lock()
	f.sent = append(f.sent, env)
	relay := f.relay
	f.mu.Unlock()
	if relay != nil {
		relay(env)
	}
}

func (f *fakeSignaler) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth
}

func (f *fakeSignaler) setAuth(v bool) {
	f.mu.Lock()
	f.auth = v
	f.mu.Unlock()
}

// peerMessages returns relayed messages of event addressed to to.
func (f *fakeSignaler) peerMessages(event signaling.Event, to signaling.PeerID) []*signaling.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*signaling.Envelope
	for _, env := range f.sent {
		if !env.IsServer() && env.Event == event && env.To == to {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeSignaler) serverMessages(t signaling.MessageType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, env := range f.sent {
		if env.Type == t {
			n++
		}
	}
	return n
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Active counts timers that are armed and not yet fired.
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type harness struct {
	m        *Manager
	signaler *fakeSignaler
	factory  *transporttest.Factory
	clock    *fakeClock

	mu       sync.Mutex
	failures []*OpError
	views    []View
}

func newHarness(t *testing.T, self signaling.PeerID) *harness {
	t.Helper()

	local, err := media.NewLocal()
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	h := &harness{
		signaler: &fakeSignaler{auth: true},
		factory:  transporttest.NewFactory(),
		clock:    &fakeClock{},
	}
	h.m = New(Options{
		Self:     self,
		Signaler: h.signaler,
		Factory:  h.factory,
		Media:    local,
		Clock:    h.clock,
		OnFailure: func(e *OpError) {
			h.mu.Lock()
			h.failures = append(h.failures, e)
			h.mu.Unlock()
		},
		OnView: func(v View) {
			h.mu.Lock()
			h.views = append(h.views, v)
			h.mu.Unlock()
		},
	})

	go h.m.Run(testContext(t))
	t.Cleanup(h.m.Close)
	return h
}

// inspect runs fn on the manager loop, after every previously posted input.
func (h *harness) inspect(t *testing.T, fn func()) {
	t.Helper()
	if err := h.m.do(func() error { fn(); return nil }); err != nil {
		t.Fatalf("inspect: %v", err)
	}
}

func (h *harness) join(t *testing.T) {
	t.Helper()
	if err := h.m.Join(); err != nil {
		t.Fatalf("Join: %v", err)
	}
}

// roster delivers a roster update and waits until the loop has applied it.
func (h *harness) roster(ids ...signaling.PeerID) {
	if ids == nil {
		ids = []signaling.PeerID{}
	}
	env, _ := signaling.NewServerMessage(signaling.TypeRoomMembers, ids)
	h.m.HandleEnvelope(env)
	h.m.do(func() error { return nil })
}

func (h *harness) peers(t *testing.T) []signaling.PeerID {
	t.Helper()
	var out []signaling.PeerID
	h.inspect(t, func() { out = h.m.table.Peers() })
	return out
}

func (h *harness) session(t *testing.T, peer signaling.PeerID) *Session {
	t.Helper()
	var s *Session
	h.inspect(t, func() { s = h.m.table.Get(peer) })
	return s
}

func (h *harness) failuresOf(class Class) []*OpError {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*OpError
	for _, f := range h.failures {
		if f.Class == class {
			out = append(out, f)
		}
	}
	return out
}

func (h *harness) lastView() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.views) == 0 {
		return View{}
	}
	return h.views[len(h.views)-1]
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// never checks that cond stays false for a short while.
func never(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("unexpected: %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func samePeers(a, b []signaling.PeerID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[signaling.PeerID]int)
	for _, p := range a {
		seen[p]++
	}
	for _, p := range b {
		seen[p]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

func label(peer signaling.PeerID) string {
	return strconv.FormatInt(int64(peer), 10)
}

func signalingPeer(id int) signaling.PeerID {
	return signaling.PeerID(id)
}

// testContext stands in for testing.T.Context (Go 1.24+): the returned
// context is cancelled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
