package call

import (
	"sync"

	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/BioHazard786/Warpdrop/meet/internal/transport"
	pion "github.com/pion/webrtc/v4"
)

// Role decides which side of a session sends the first offer.
type Role int

const (
	Responder Role = iota
	Initiator
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Session is the negotiation state for one remote peer. Its fields are only
// touched by the manager loop. Negotiation calls on the transport handle run
// on the session's worker; the loop only reads the live ICE state from it.
type Session struct {
	Peer  signaling.PeerID
	Role  Role
	State pion.ICEConnectionState

	handle   transport.Handle
	streamID string
	pending  [degradationKinds]Timer

	work *worker
	done chan struct{}
}

func newSession(peer signaling.PeerID, role Role, h transport.Handle) *Session {
	s := &Session{
		Peer:   peer,
		Role:   role,
		State:  pion.ICEConnectionStateNew,
		handle: h,
		done:   make(chan struct{}),
	}
	s.work = newWorker(s.done)
	go s.work.run()
	return s
}

// Pending reports whether recovery of kind is armed.
func (s *Session) Pending(kind Degradation) bool {
	return s.pending[kind] != nil
}

// StreamID is the remote stream attached to the peer's tile, if any.
func (s *Session) StreamID() string {
	return s.streamID
}

// close releases the handle and cancels everything scheduled for the session.
func (s *Session) close() error {
	for i, t := range s.pending {
		if t != nil {
			t.Stop()
			s.pending[i] = nil
		}
	}
	err := s.handle.Close()
	close(s.done)
	return err
}

// Table holds at most one session per peer, in creation order.
type Table struct {
	sessions map[signaling.PeerID]*Session
	order    []signaling.PeerID
}

func NewTable() *Table {
	return &Table{sessions: make(map[signaling.PeerID]*Session)}
}

func (t *Table) Get(peer signaling.PeerID) *Session {
	return t.sessions[peer]
}

func (t *Table) Len() int {
	return len(t.sessions)
}

// Peers returns the peers with a live session in creation order.
func (t *Table) Peers() []signaling.PeerID {
	return append([]signaling.PeerID(nil), t.order...)
}

// Put adds s unless its peer already has a session.
func (t *Table) Put(s *Session) bool {
	if _, ok := t.sessions[s.Peer]; ok {
		return false
	}
	t.sessions[s.Peer] = s
	t.order = append(t.order, s.Peer)
	return true
}

// Remove closes the peer's session and deletes it. The handle is closed
// before the entry goes away.
func (t *Table) Remove(peer signaling.PeerID) (*Session, error) {
	s, ok := t.sessions[peer]
	if !ok {
		return nil, nil
	}
	err := s.close()
	delete(t.sessions, peer)
	for i, p := range t.order {
		if p == peer {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return s, err
}

// worker runs transport calls for one session in submission order.
type worker struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  <-chan struct{}
}

func newWorker(done <-chan struct{}) *worker {
	return &worker{wake: make(chan struct{}, 1), done: done}
}

// enqueue never blocks.
func (w *worker) enqueue(fn func()) {
	w.mu.Lock()
	w.queue = append(w.queue, fn)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			fn := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()

			select {
			case <-w.done:
				return
			default:
			}
			fn()
		}
	}
}
