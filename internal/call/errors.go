package call

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
)

var (
	ErrNotAuthenticated = errors.New("signaling channel is not authenticated")
	ErrAlreadyInCall    = errors.New("already in a call")
	ErrNotInCall        = errors.New("not in a call")
	ErrUnknownPeer      = errors.New("no live session for peer")
	ErrUnknownEvent     = errors.New("unknown peer event")
	ErrStopped          = errors.New("call manager stopped")
)

// Class groups failures by how the manager contains them.
type Class int

const (
	// ClassProtocol is a malformed or unexpected envelope. The message is
	// dropped.
	ClassProtocol Class = iota
	// ClassNegotiation is a failed offer, answer or description step. The
	// session keeps its prior state.
	ClassNegotiation
	// ClassStaleReference is a message for a peer without a live session.
	ClassStaleReference
	// ClassDegradation is a disconnected or failed transport, handed to
	// recovery.
	ClassDegradation
)

func (c Class) String() string {
	switch c {
	case ClassProtocol:
		return "protocol"
	case ClassNegotiation:
		return "negotiation"
	case ClassStaleReference:
		return "stale-reference"
	case ClassDegradation:
		return "degradation"
	default:
		return "unknown"
	}
}

// Operation names used in OpError.
const (
	OpRoster       = "reconcile roster"
	OpCreateHandle = "create transport"
	OpAddTrack     = "attach local track"
	OpCreateOffer  = "create offer"
	OpCreateAnswer = "create answer"
	OpSetLocal     = "set local description"
	OpSetRemote    = "set remote description"
	OpAddCandidate = "add candidate"
	OpDecode       = "decode peer event"
	OpDispatch     = "dispatch peer event"
	OpRecover      = "recover transport"
)

// OpError is a failure contained to one peer session.
type OpError struct {
	Class Class
	Op    string
	Peer  signaling.PeerID
	Err   error
}

func (e *OpError) Error() string {
	if e.Peer == 0 {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s (peer %d): %v", e.Class, e.Op, e.Peer, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
