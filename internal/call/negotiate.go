package call

import (
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// work runs fn on the session's worker and posts then back to the loop. The
// continuation is dropped if the session was closed or replaced meanwhile.
func (m *Manager) work(s *Session, op string, fn func() error, then func()) {
	s.work.enqueue(func() {
		err := fn()
		m.post(func() {
			if m.table.Get(s.Peer) != s {
				slog.Debug("session closed during transport call", "peer", s.Peer, "op", op)
				return
			}
			if err != nil {
				m.fail(ClassNegotiation, op, s.Peer, err)
				return
			}
			if then != nil {
				then()
			}
		})
	})
}

// startOffer creates an offer, applies it locally and relays it. With
// restart the offer carries fresh ICE credentials.
func (m *Manager) startOffer(s *Session, restart bool) {
	slog.Debug("starting to create an offer", "peer", s.Peer, "iceRestart", restart)

	var offer pion.SessionDescription
	m.work(s, OpCreateOffer, func() (err error) {
		if restart {
			s.handle.RestartICE()
		}
		offer, err = s.handle.CreateOffer()
		return err
	}, func() {
		m.work(s, OpSetLocal, func() error {
			return s.handle.SetLocalDescription(offer)
		}, func() {
			m.relay(s.Peer, signaling.EventOffer, offer)
		})
	})
}

// acceptOffer applies a remote offer and answers it.
func (m *Manager) acceptOffer(s *Session, offer pion.SessionDescription) {
	var answer pion.SessionDescription
	m.work(s, OpSetRemote, func() error {
		return s.handle.SetRemoteDescription(offer)
	}, func() {
		m.work(s, OpCreateAnswer, func() (err error) {
			answer, err = s.handle.CreateAnswer()
			return err
		}, func() {
			m.work(s, OpSetLocal, func() error {
				return s.handle.SetLocalDescription(answer)
			}, func() {
				m.relay(s.Peer, signaling.EventAnswer, answer)
			})
		})
	})
}

// handlePeerEvent dispatches an offer, answer or candidate relayed by the
// server. Messages for peers without a live session are dropped.
func (m *Manager) handlePeerEvent(env *signaling.Envelope) {
	if m.table.Len() == 0 {
		m.fail(ClassStaleReference, OpDispatch, env.From, fmt.Errorf("%w: no sessions, skipping %s", ErrUnknownPeer, env.Event))
		return
	}
	s := m.table.Get(env.From)
	if s == nil {
		m.fail(ClassStaleReference, OpDispatch, env.From, fmt.Errorf("%w: skipping %s", ErrUnknownPeer, env.Event))
		return
	}

	switch env.Event {

	case signaling.EventOffer:
		var offer pion.SessionDescription
		if err := env.Decode(&offer); err != nil {
			m.fail(ClassProtocol, OpDecode, s.Peer, err)
			return
		}
		m.acceptOffer(s, offer)

	case signaling.EventAnswer:
		var answer pion.SessionDescription
		if err := env.Decode(&answer); err != nil {
			m.fail(ClassProtocol, OpDecode, s.Peer, err)
			return
		}
		m.work(s, OpSetRemote, func() error {
			return s.handle.SetRemoteDescription(answer)
		}, nil)

	case signaling.EventCandidate:
		var candidate pion.ICECandidateInit
		if err := env.Decode(&candidate); err != nil {
			m.fail(ClassProtocol, OpDecode, s.Peer, err)
			return
		}
		m.work(s, OpAddCandidate, func() error {
			return s.handle.AddICECandidate(candidate)
		}, nil)

	default:
		m.fail(ClassProtocol, OpDispatch, s.Peer, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event))
	}
}

// relay sends a peer event through the signaling channel.
func (m *Manager) relay(peer signaling.PeerID, event signaling.Event, data any) {
	env, err := signaling.NewPeerMessage(m.opts.Self, peer, event, data)
	if err != nil {
		m.fail(ClassProtocol, string(event), peer, err)
		return
	}
	m.opts.Signaler.Send(env)
}
