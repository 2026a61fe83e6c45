// Package transport describes the real-time transport a call session
// negotiates over, and provides the pion/webrtc implementation.
package transport

import (
	"errors"

	pion "github.com/pion/webrtc/v4"
)

var ErrClosed = errors.New("transport closed")

// EventKind tells which notification an Event carries.
type EventKind int

const (
	// EventCandidate carries a locally discovered ICE candidate. A nil
	// Candidate marks the end of gathering.
	EventCandidate EventKind = iota
	// EventStateChange carries a new ICE connection state.
	EventStateChange
	// EventTrack carries a remote track; StreamID names its media stream.
	EventTrack
)

func (k EventKind) String() string {
	switch k {
	case EventCandidate:
		return "candidate"
	case EventStateChange:
		return "state"
	case EventTrack:
		return "track"
	default:
		return "unknown"
	}
}

// Event is one transport notification, delivered in order on Handle.Events.
type Event struct {
	Kind      EventKind
	Candidate *pion.ICECandidateInit
	State     pion.ICEConnectionState
	StreamID  string
	TrackID   string
}

// Handle is one transport session with one remote peer. Methods may block
// while the transport works; callers run them off their event loop.
type Handle interface {
	CreateOffer() (pion.SessionDescription, error)
	CreateAnswer() (pion.SessionDescription, error)
	SetLocalDescription(pion.SessionDescription) error
	SetRemoteDescription(pion.SessionDescription) error
	AddICECandidate(pion.ICECandidateInit) error
	AddTrack(pion.TrackLocal) error

	// RestartICE makes the next CreateOffer request fresh ICE credentials.
	RestartICE()

	ICEConnectionState() pion.ICEConnectionState
	LocalDescription() *pion.SessionDescription
	RemoteDescription() *pion.SessionDescription

	// Events is the ordered, single-consumer notification stream. It is never
	// closed; stop reading when the handle is closed.
	Events() <-chan Event

	Close() error
}

// Factory creates a Handle per remote peer. label is used for logging only.
type Factory interface {
	NewHandle(label string) (Handle, error)
}
