// Package call keeps one negotiated transport session per remote peer in the
// room, recovers degraded sessions and maintains the tile board the UI draws.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/journal"
	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/BioHazard786/Warpdrop/meet/internal/transport"
	pion "github.com/pion/webrtc/v4"
)

const (
	DefaultDisconnectedDelay = 10 * time.Second
	DefaultFailedDelay       = 3 * time.Second

	inboxSize = 256
)

// Signaler is the part of the signaling client the manager drives.
type Signaler interface {
	Send(env *signaling.Envelope)
	Authenticated() bool
}

// LocalMedia provides the tracks attached to every new session.
type LocalMedia interface {
	Tracks() []pion.TrackLocal
}

// Recorder receives journal entries.
type Recorder interface {
	Record(peer signaling.PeerID, kind journal.Kind, detail string) error
}

// Options configures a Manager. Self, Signaler and Factory are required.
type Options struct {
	Self     signaling.PeerID
	Signaler Signaler
	Factory  transport.Factory

	// Messages, when set, is consumed by Run. Envelopes can also be fed
	// through HandleEnvelope.
	Messages <-chan *signaling.Envelope

	Media   LocalMedia
	Clock   Clock
	Journal Recorder

	DisconnectedDelay time.Duration
	FailedDelay       time.Duration

	// Initial container size used for the orientation of the grid.
	Width  int
	Height int

	// Observers run on the manager loop and must not block for long.
	OnView    func(View)
	OnFailure func(*OpError)
}

// View is everything the UI shows about the call.
type View struct {
	Self   signaling.PeerID
	Status signaling.Status
	InCall bool
	Board  BoardSnapshot
}

// Manager owns the session table. All of its state is confined to the Run
// loop; every input is posted to the loop and runs to completion there.
type Manager struct {
	opts  Options
	clock Clock

	inbox    chan func()
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool

	table     *Table
	board     *Board
	status    signaling.Status
	inCall    bool
	initiator bool
	viewDirty bool
}

// New creates a manager. Nothing happens until Run is called.
func New(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.DisconnectedDelay <= 0 {
		opts.DisconnectedDelay = DefaultDisconnectedDelay
	}
	if opts.FailedDelay <= 0 {
		opts.FailedDelay = DefaultFailedDelay
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = int(layout.DefaultContainer.Width), int(layout.DefaultContainer.Height)
	}

	status := signaling.StatusOff
	if opts.Signaler != nil && opts.Signaler.Authenticated() {
		status = signaling.StatusOn
	}

	return &Manager{
		opts:      opts,
		clock:     opts.Clock,
		inbox:     make(chan func(), inboxSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		table:     NewTable(),
		board:     NewBoard(opts.Width, opts.Height),
		status:    status,
		initiator: true,
		viewDirty: true,
	}
}

// Run processes inputs until ctx is done or Close is called. Every session is
// closed before it returns.
func (m *Manager) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("call manager already running")
	}
	defer close(m.done)
	defer m.teardown()

	msgs := m.opts.Messages
	m.publish()

	for {
		select {
		case fn := <-m.inbox:
			fn()

		case env, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			m.handleEnvelope(env)

		case <-ctx.Done():
			return ctx.Err()

		case <-m.stop:
			return nil
		}
		m.publish()
	}
}

// Close stops the loop and waits for it to release every session.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.started.Load() {
		<-m.done
	}
}

// post queues fn for the loop.
func (m *Manager) post(fn func()) error {
	select {
	case m.inbox <- fn:
		return nil
	case <-m.stop:
		return ErrStopped
	case <-m.done:
		return ErrStopped
	}
}

// do runs fn on the loop and waits for its result.
func (m *Manager) do(fn func() error) error {
	result := make(chan error, 1)
	if err := m.post(func() { result <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-m.done:
		return ErrStopped
	}
}

// Join enters the room. Sessions are created when the next roster arrives.
func (m *Manager) Join() error {
	return m.do(func() error {
		if !m.opts.Signaler.Authenticated() {
			return ErrNotAuthenticated
		}
		if m.inCall {
			return ErrAlreadyInCall
		}

		slog.Info("starting call, joining room", "self", m.opts.Self)
		m.inCall = true
		m.viewDirty = true
		m.sendServer(signaling.TypeJoinRoom)
		m.record(0, journal.KindJoin, "")
		return nil
	})
}

// Hangup closes every session and leaves the room. The next Join negotiates
// as initiator again.
func (m *Manager) Hangup() error {
	return m.do(func() error {
		if !m.inCall {
			return ErrNotInCall
		}

		slog.Info("ending call")
		m.endCall("hangup")
		m.sendServer(signaling.TypeLeaveRoom)
		m.record(0, journal.KindHangup, "")
		return nil
	})
}

// HandleEnvelope feeds one inbound signaling message to the loop.
func (m *Manager) HandleEnvelope(env *signaling.Envelope) {
	if err := m.post(func() { m.handleEnvelope(env) }); err != nil {
		slog.Debug("dropping envelope, manager stopped", "type", env.Type, "event", env.Event)
	}
}

// HandleStatus feeds a signaling status change to the loop. Losing
// authentication ends the call.
func (m *Manager) HandleStatus(s signaling.Status) {
	m.post(func() { m.handleStatus(s) })
}

// Resize reports a new container size.
func (m *Manager) Resize(width, height int) {
	m.post(func() {
		if m.board.Resize(width, height) {
			slog.Debug("orientation changed, grid recomputed", "width", width, "height", height)
		}
	})
}

// View returns the current view.
func (m *Manager) View() (View, error) {
	var v View
	err := m.do(func() error {
		v = m.view()
		return nil
	})
	return v, err
}

func (m *Manager) view() View {
	return View{
		Self:   m.opts.Self,
		Status: m.status,
		InCall: m.inCall,
		Board:  m.board.Snapshot(),
	}
}

func (m *Manager) publish() {
	if !m.viewDirty && !m.board.dirty {
		return
	}
	m.viewDirty = false
	v := m.view()
	if m.opts.OnView != nil {
		m.opts.OnView(v)
	}
}

func (m *Manager) handleStatus(s signaling.Status) {
	if s == m.status {
		return
	}
	slog.Info("signaling status changed", "status", s)
	m.status = s
	m.viewDirty = true
	m.record(0, journal.KindStatus, string(s))

	if s == signaling.StatusOff && (m.inCall || m.table.Len() > 0) {
		slog.Warn("signaling authentication lost, ending call")
		m.endCall("authentication lost")
	}
}

// endCall closes every session and restores the initiator flag.
func (m *Manager) endCall(reason string) {
	m.inCall = false
	m.initiator = true
	m.viewDirty = true
	for _, peer := range m.table.Peers() {
		m.closeSession(peer, reason)
	}
	m.board.Clear()
}

func (m *Manager) teardown() {
	for _, peer := range m.table.Peers() {
		m.closeSession(peer, "shutdown")
	}
	m.board.Clear()
}

func (m *Manager) handleEnvelope(env *signaling.Envelope) {
	if !env.IsServer() {
		m.handlePeerEvent(env)
		return
	}

	switch env.Type {

	case signaling.TypeRoomMembers:
		roster, err := env.Roster()
		if err != nil {
			m.fail(ClassProtocol, OpRoster, 0, err)
			return
		}
		m.reconcile(roster)

	case signaling.TypeFailure:
		var f signaling.FailurePayload
		if err := env.Decode(&f); err != nil {
			m.fail(ClassProtocol, OpDispatch, 0, err)
			return
		}
		m.fail(ClassProtocol, string(f.Source), 0, fmt.Errorf("relay rejected request: %v", f.Errors))

	case signaling.TypeServerClosing:
		m.record(0, journal.KindStatus, "relay closing")

	default:
		slog.Debug("ignoring server message", "type", env.Type)
	}
}

// reconcile makes the session set equal the roster minus self. Offers are
// only started while the initiator flag is set, and the flag is cleared after
// the first pass.
func (m *Manager) reconcile(roster signaling.Roster) {
	if !m.inCall {
		slog.Debug("not in call, skipping peers setup", "roster", roster)
		return
	}
	defer func() { m.initiator = false }()

	m.record(0, journal.KindRoster, fmt.Sprint(roster))

	role := Responder
	if m.initiator {
		role = Initiator
	}

	for _, peer := range roster {
		if peer == m.opts.Self {
			continue
		}
		if m.table.Get(peer) != nil {
			slog.Debug("session exists, skipping", "peer", peer)
			continue
		}
		m.openSession(peer, role)
	}

	for _, peer := range m.table.Peers() {
		if !roster.Contains(peer) {
			m.closeSession(peer, "left the room")
		}
	}
}

func (m *Manager) openSession(peer signaling.PeerID, role Role) {
	h, err := m.opts.Factory.NewHandle(fmt.Sprint(peer))
	if err != nil {
		m.fail(ClassNegotiation, OpCreateHandle, peer, err)
		return
	}

	s := newSession(peer, role, h)
	m.table.Put(s)
	m.board.Add(peer)
	go m.pumpEvents(s)

	slog.Info("created peer session", "peer", peer, "role", role)
	m.record(peer, journal.KindSessionOpened, role.String())

	if m.opts.Media != nil {
		for _, track := range m.opts.Media.Tracks() {
			m.work(s, OpAddTrack, func() error { return s.handle.AddTrack(track) }, nil)
		}
	}

	if role == Initiator {
		m.startOffer(s, false)
	}
}

func (m *Manager) closeSession(peer signaling.PeerID, reason string) {
	s, err := m.table.Remove(peer)
	if s == nil {
		return
	}
	if err != nil {
		slog.Warn("error closing peer transport", "peer", peer, "err", err)
	}
	m.board.Remove(peer)

	slog.Info("closed peer session", "peer", peer, "reason", reason)
	m.record(peer, journal.KindSessionClosed, reason)
}

// pumpEvents forwards the session's transport events to the loop in order.
func (m *Manager) pumpEvents(s *Session) {
	events := s.handle.Events()
	for {
		select {
		case ev := <-events:
			if err := m.post(func() { m.onTransportEvent(s, ev) }); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (m *Manager) onTransportEvent(s *Session, ev transport.Event) {
	if m.table.Get(s.Peer) != s {
		return
	}

	switch ev.Kind {

	case transport.EventCandidate:
		if ev.Candidate == nil {
			slog.Debug("candidate gathering complete", "peer", s.Peer)
			return
		}
		m.relay(s.Peer, signaling.EventCandidate, ev.Candidate)

	case transport.EventTrack:
		// Audio and video of one stream arrive as separate tracks.
		if ev.StreamID == s.streamID {
			return
		}
		if s.streamID != "" {
			slog.Debug("peer switched remote stream", "peer", s.Peer, "from", s.streamID, "to", ev.StreamID)
		}
		s.streamID = ev.StreamID
		m.board.Attach(s.Peer, ev.StreamID)
		slog.Info("peer connection received remote stream", "peer", s.Peer, "stream", ev.StreamID)
		m.record(s.Peer, journal.KindTrack, ev.StreamID)

	case transport.EventStateChange:
		s.State = ev.State
		m.board.SetState(s.Peer, ev.State)
		m.record(s.Peer, journal.KindICEState, ev.State.String())
		m.observeHealth(s, ev.State)
	}
}

// fail logs a contained failure and hands it to the observer.
func (m *Manager) fail(class Class, op string, peer signaling.PeerID, err error) {
	e := &OpError{Class: class, Op: op, Peer: peer, Err: err}

	switch class {
	case ClassStaleReference:
		slog.Debug("dropping stale message", "peer", peer, "op", op, "err", err)
	case ClassDegradation:
		slog.Info("transport degraded", "peer", peer, "err", err)
	default:
		slog.Warn("call failure", "class", class, "peer", peer, "op", op, "err", err)
	}

	m.record(peer, journal.KindFailure, e.Error())
	if m.opts.OnFailure != nil {
		m.opts.OnFailure(e)
	}
}

func (m *Manager) record(peer signaling.PeerID, kind journal.Kind, detail string) {
	if m.opts.Journal == nil {
		return
	}
	if err := m.opts.Journal.Record(peer, kind, detail); err != nil {
		slog.Warn("failed to write journal entry", "kind", kind, "err", err)
	}
}

func (m *Manager) sendServer(t signaling.MessageType) {
	env, err := signaling.NewServerMessage(t, nil)
	if err != nil {
		m.fail(ClassProtocol, string(t), 0, err)
		return
	}
	m.opts.Signaler.Send(env)
}
