// Package transporttest provides an in-memory transport for driving call
// sessions without a network.
package transporttest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BioHazard786/Warpdrop/meet/internal/transport"
	pion "github.com/pion/webrtc/v4"
)

// Op names a Handle method whose result can be overridden with SetError.
type Op string

const (
	OpCreateOffer  Op = "create-offer"
	OpCreateAnswer Op = "create-answer"
	OpSetLocal     Op = "set-local"
	OpSetRemote    Op = "set-remote"
	OpAddCandidate Op = "add-candidate"
	OpAddTrack     Op = "add-track"
)

// Factory hands out Handles and remembers them by label.
type Factory struct {
	mu      sync.Mutex
	handles map[string][]*Handle
	err     error
	prepare func(*Handle)
}

func NewFactory() *Factory {
	return &Factory{handles: make(map[string][]*Handle)}
}

// Fail makes every following NewHandle return err. nil restores success.
func (f *Factory) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Prepare runs fn on every new handle before it is returned, e.g. to Hold it
// or make an operation fail.
func (f *Factory) Prepare(fn func(*Handle)) {
	f.mu.Lock()
	f.prepare = fn
	f.mu.Unlock()
}

func (f *Factory) NewHandle(label string) (transport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	h := newHandle(label)
	if f.prepare != nil {
		f.prepare(h)
	}
	f.handles[label] = append(f.handles[label], h)
	return h, nil
}

// Latest returns the most recent handle created for label, or nil.
func (f *Factory) Latest(label string) *Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	hs := f.handles[label]
	if len(hs) == 0 {
		return nil
	}
	return hs[len(hs)-1]
}

// Count returns how many handles were created for label.
func (f *Factory) Count(label string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles[label])
}

// Handle records every call made on it. Descriptions are deterministic
// strings derived from the label so tests can compare both ends.
type Handle struct {
	Label string

	mu         sync.Mutex
	state      pion.ICEConnectionState
	local      *pion.SessionDescription
	remote     *pion.SessionDescription
	candidates []pion.ICECandidateInit
	tracks     []pion.TrackLocal
	offers     []pion.SessionDescription
	answers    int
	restart    bool
	restarts   int
	closed     bool
	errs       map[Op]error
	gate       chan struct{}

	events chan transport.Event
}

func newHandle(label string) *Handle {
	return &Handle{
		Label:  label,
		state:  pion.ICEConnectionStateNew,
		errs:   make(map[Op]error),
		events: make(chan transport.Event, 64),
	}
}

// SetError makes op fail with err. nil restores success.
func (h *Handle) SetError(op Op, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.errs, op)
		return
	}
	h.errs[op] = err
}

// Hold blocks CreateOffer and CreateAnswer until Release is called.
func (h *Handle) Hold() {
	h.mu.Lock()
	h.gate = make(chan struct{})
	h.mu.Unlock()
}

// Release unblocks calls parked by Hold.
func (h *Handle) Release() {
	h.mu.Lock()
	gate := h.gate
	h.gate = nil
	h.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (h *Handle) wait() {
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (h *Handle) fail(op Op) error {
	if h.closed {
		return transport.ErrClosed
	}
	return h.errs[op]
}

func (h *Handle) CreateOffer() (pion.SessionDescription, error) {
	h.wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(OpCreateOffer); err != nil {
		return pion.SessionDescription{}, err
	}
	sdp := fmt.Sprintf("offer-%s-%d", h.Label, len(h.offers)+1)
	if h.restart {
		sdp += "-iceRestart"
		h.restart = false
	}
	d := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}
	h.offers = append(h.offers, d)
	return d, nil
}

func (h *Handle) CreateAnswer() (pion.SessionDescription, error) {
	h.wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(OpCreateAnswer); err != nil {
		return pion.SessionDescription{}, err
	}
	if h.remote == nil || h.remote.Type != pion.SDPTypeOffer {
		return pion.SessionDescription{}, errors.New("no remote offer")
	}
	h.answers++
	return pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  fmt.Sprintf("answer-%s-%d", h.Label, h.answers),
	}, nil
}

func (h *Handle) SetLocalDescription(d pion.SessionDescription) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(OpSetLocal); err != nil {
		return err
	}
	h.local = &d
	return nil
}

func (h *Handle) SetRemoteDescription(d pion.SessionDescription) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(OpSetRemote); err != nil {
		return err
	}
	h.remote = &d
	return nil
}

func (h *Handle) AddICECandidate(c pion.ICECandidateInit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(OpAddCandidate); err != nil {
		return err
	}
	h.candidates = append(h.candidates, c)
	return nil
}

func (h *Handle) AddTrack(t pion.TrackLocal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(OpAddTrack); err != nil {
		return err
	}
	h.tracks = append(h.tracks, t)
	return nil
}

func (h *Handle) RestartICE() {
	h.mu.Lock()
	h.restart = true
	h.restarts++
	h.mu.Unlock()
}

func (h *Handle) ICEConnectionState() pion.ICEConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) LocalDescription() *pion.SessionDescription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.local
}

func (h *Handle) RemoteDescription() *pion.SessionDescription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remote
}

func (h *Handle) Events() <-chan transport.Event {
	return h.events
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.state = pion.ICEConnectionStateClosed
	return nil
}

// Emit delivers ev on the event stream.
func (h *Handle) Emit(ev transport.Event) {
	h.events <- ev
}

// SetState changes the ICE state and emits the matching event.
func (h *Handle) SetState(s pion.ICEConnectionState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
	h.Emit(transport.Event{Kind: transport.EventStateChange, State: s})
}

// SetStateSilently changes the ICE state without emitting an event.
func (h *Handle) SetStateSilently(s pion.ICEConnectionState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// EmitCandidate emits a discovered candidate. An empty string emits the
// end-of-gathering marker.
func (h *Handle) EmitCandidate(candidate string) {
	ev := transport.Event{Kind: transport.EventCandidate}
	if candidate != "" {
		ev.Candidate = &pion.ICECandidateInit{Candidate: candidate}
	}
	h.Emit(ev)
}

// EmitTrack emits a remote track belonging to streamID.
func (h *Handle) EmitTrack(streamID, trackID string) {
	h.Emit(transport.Event{Kind: transport.EventTrack, StreamID: streamID, TrackID: trackID})
}

func (h *Handle) Offers() []pion.SessionDescription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pion.SessionDescription(nil), h.offers...)
}

func (h *Handle) Answers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.answers
}

func (h *Handle) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

func (h *Handle) Candidates() []pion.ICECandidateInit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pion.ICECandidateInit(nil), h.candidates...)
}

func (h *Handle) Tracks() []pion.TrackLocal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pion.TrackLocal(nil), h.tracks...)
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
