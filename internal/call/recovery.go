package call

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/journal"
	pion "github.com/pion/webrtc/v4"
)

// Degradation is a transport health signal that triggers recovery.
type Degradation int

const (
	Disconnected Degradation = iota
	Failed
)

const degradationKinds = 2

func (d Degradation) String() string {
	if d == Failed {
		return "failed"
	}
	return "disconnected"
}

// State is the ICE state the degradation corresponds to.
func (d Degradation) State() pion.ICEConnectionState {
	if d == Failed {
		return pion.ICEConnectionStateFailed
	}
	return pion.ICEConnectionStateDisconnected
}

func degradationOf(state pion.ICEConnectionState) (Degradation, bool) {
	switch state {
	case pion.ICEConnectionStateDisconnected:
		return Disconnected, true
	case pion.ICEConnectionStateFailed:
		return Failed, true
	default:
		return 0, false
	}
}

func (m *Manager) recoveryDelay(kind Degradation) time.Duration {
	if kind == Failed {
		return m.opts.FailedDelay
	}
	return m.opts.DisconnectedDelay
}

// observeHealth arms one recovery timer per degradation kind. A signal while
// that kind is pending is a no-op.
func (m *Manager) observeHealth(s *Session, state pion.ICEConnectionState) {
	kind, ok := degradationOf(state)
	if !ok {
		return
	}
	m.fail(ClassDegradation, OpRecover, s.Peer, fmt.Errorf("ice connection %s", state))

	if s.pending[kind] != nil {
		slog.Debug("recovery already pending", "peer", s.Peer, "kind", kind)
		return
	}

	delay := m.recoveryDelay(kind)
	s.pending[kind] = m.clock.AfterFunc(delay, func() {
		m.post(func() { m.recoveryDue(s, kind) })
	})

	slog.Info("scheduled ICE restart", "peer", s.Peer, "kind", kind, "delay", delay)
	m.record(s.Peer, journal.KindRecovery, fmt.Sprintf("armed %s after %s", kind, delay))
}

// recoveryDue runs when a recovery timer expires. It restarts ICE only when
// the session is still live and still in the degraded state.
func (m *Manager) recoveryDue(s *Session, kind Degradation) {
	if m.table.Get(s.Peer) != s {
		slog.Debug("peer left before recovery", "peer", s.Peer, "kind", kind)
		return
	}

	if live := s.handle.ICEConnectionState(); live != kind.State() {
		slog.Info("transport recovered without restart", "peer", s.Peer, "kind", kind, "state", live)
		s.pending[kind] = nil
		m.record(s.Peer, journal.KindRecovery, fmt.Sprintf("%s resolved: %s", kind, live))
		return
	}

	slog.Info("restarting ICE", "peer", s.Peer, "kind", kind)
	m.startOffer(s, true)
	s.pending[kind] = nil
	m.record(s.Peer, journal.KindRecovery, fmt.Sprintf("restart after %s", kind))
}
