package signaling

import (
	"encoding/json"
	"fmt"
	"slices"
)

// PeerID identifies a user on the relay. The relay assigns numeric ids.
type PeerID int64

// MessageType is the discriminator of a server control message.
type MessageType string

// Message type constants.
const (
	TypeUserAuthentication MessageType = "USER_AUTHENTICATION"
	TypeJoinRoom           MessageType = "JOIN_ROOM"
	TypeLeaveRoom          MessageType = "LEAVE_ROOM"
	TypePing               MessageType = "PING"
	TypePeerLog            MessageType = "PEER_LOG"

	TypeUserAuthenticated MessageType = "USER_AUTHENTICATED"
	TypeRoomMembers       MessageType = "ROOM_MEMBERS"
	TypePong              MessageType = "PONG"
	TypeFailure           MessageType = "FAILURE"
	TypeServerClosing     MessageType = "SERVER_CLOSING"
)

// Event names of peer-relayed messages.
type Event string

const (
	EventOffer     Event = "offer"
	EventAnswer    Event = "answer"
	EventCandidate Event = "candidate"
)

// Envelope is either a server control message ({type, data}) or a message
// relayed between peers ({from, to, event, data}). The presence of Type
// decides which.
type Envelope struct {
	Type  MessageType
	From  PeerID
	To    PeerID
	Event Event
	Data  json.RawMessage
}

type serverWire struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type peerWire struct {
	From  PeerID          `json:"from"`
	To    PeerID          `json:"to"`
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type inboundWire struct {
	Type  MessageType     `json:"type"`
	From  PeerID          `json:"from"`
	To    PeerID          `json:"to"`
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// IsServer reports whether e is a server control message.
func (e *Envelope) IsServer() bool {
	return e.Type != ""
}

// MarshalJSON writes the server or the peer shape, never both.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.IsServer() {
		return json.Marshal(serverWire{Type: e.Type, Data: e.Data})
	}
	return json.Marshal(peerWire{From: e.From, To: e.To, Event: e.Event, Data: e.Data})
}

// UnmarshalJSON accepts either shape.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var w inboundWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Envelope{Type: w.Type, From: w.From, To: w.To, Event: w.Event, Data: w.Data}
	if string(e.Data) == "null" {
		e.Data = nil
	}
	return nil
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

// NewServerMessage builds a control message. A nil data omits the field.
func NewServerMessage(t MessageType, data any) (*Envelope, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: t, Data: raw}, nil
}

// NewPeerMessage builds a message the relay forwards to another peer.
func NewPeerMessage(from, to PeerID, event Event, data any) (*Envelope, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{From: from, To: to, Event: event, Data: raw}, nil
}

func encodeData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// Roster is the authoritative list of peers currently in the room.
type Roster []PeerID

// Contains reports whether id is in the roster.
func (r Roster) Contains(id PeerID) bool {
	return slices.Contains(r, id)
}

// Roster decodes a ROOM_MEMBERS payload. A missing payload is an empty room.
func (e *Envelope) Roster() (Roster, error) {
	if len(e.Data) == 0 {
		return Roster{}, nil
	}
	var r Roster
	if err := e.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}

// FailurePayload is sent by the relay when it rejects a request.
type FailurePayload struct {
	Source MessageType `json:"source"`
	Errors []string    `json:"errors"`
}

// PeerLogPayload carries a client log line to the relay.
type PeerLogPayload struct {
	PeerID  string `json:"peerId"`
	Message string `json:"message"`
	Objects []any  `json:"objects,omitempty"`
}
