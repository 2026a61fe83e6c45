package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/logging"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
)

// DefaultPLIInterval is how often a keyframe is requested from remote video.
const DefaultPLIInterval = 3 * time.Second

const eventBuffer = 64

// PionOption configures a PionFactory.
type PionOption func(*pionOptions)

type pionOptions struct {
	settings      *pion.SettingEngine
	loggerFactory logging.LoggerFactory
	pliInterval   time.Duration
}

// WithSettingEngine uses se for every peer connection, e.g. to run on a
// virtual network.
func WithSettingEngine(se *pion.SettingEngine) PionOption {
	return func(o *pionOptions) { o.settings = se }
}

// WithLoggerFactory routes pion's internal logging.
func WithLoggerFactory(f logging.LoggerFactory) PionOption {
	return func(o *pionOptions) { o.loggerFactory = f }
}

// WithPLIInterval sets the keyframe request period. Zero disables it.
func WithPLIInterval(d time.Duration) PionOption {
	return func(o *pionOptions) { o.pliInterval = d }
}

// PionFactory creates pion peer connections sharing one API instance.
type PionFactory struct {
	api    *pion.API
	config pion.Configuration
}

// NewPionFactory builds the media engine and interceptor chain.
func NewPionFactory(config pion.Configuration, opts ...PionOption) (*PionFactory, error) {
	o := pionOptions{pliInterval: DefaultPLIInterval}
	for _, opt := range opts {
		opt(&o)
	}

	mediaEngine := &pion.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register default codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register default interceptors: %w", err)
	}

	if o.pliInterval > 0 {
		pli, err := intervalpli.NewReceiverInterceptor(intervalpli.GeneratorInterval(o.pliInterval))
		if err != nil {
			return nil, fmt.Errorf("create PLI interceptor: %w", err)
		}
		registry.Add(pli)
	}

	settings := pion.SettingEngine{}
	if o.settings != nil {
		settings = *o.settings
	}
	if o.loggerFactory != nil {
		settings.LoggerFactory = o.loggerFactory
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(mediaEngine),
		pion.WithInterceptorRegistry(registry),
		pion.WithSettingEngine(settings),
	)

	return &PionFactory{api: api, config: config}, nil
}

// NewHandle creates a peer connection and wires its callbacks to the
// handle's event stream.
func (f *PionFactory) NewHandle(label string) (Handle, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	h := &pionHandle{
		label:  label,
		pc:     pc,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		ev := Event{Kind: EventCandidate}
		if c != nil {
			init := c.ToJSON()
			ev.Candidate = &init
		}
		h.emit(ev)
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		slog.Debug("ICE state change", "peer", label, "state", state.String())
		h.emit(Event{Kind: EventStateChange, State: state})
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		h.emit(Event{Kind: EventTrack, StreamID: track.StreamID(), TrackID: track.ID()})
		go h.drainTrack(track)
	})

	return h, nil
}

type pionHandle struct {
	label   string
	pc      *pion.PeerConnection
	events  chan Event
	done    chan struct{}
	once    sync.Once
	restart atomic.Bool
}

func (h *pionHandle) emit(ev Event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// drainTrack consumes remote media so the receive pipeline keeps flowing.
// Rendering lives outside this package.
func (h *pionHandle) drainTrack(track *pion.TrackRemote) {
	packets := 0
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track ended", "peer", h.label, "track", track.ID(), "err", err)
			}
			slog.Debug("remote track drained", "peer", h.label, "track", track.ID(), "packets", packets)
			return
		}
		packets++
		if packets == 1 {
			logFirstPacket(h.label, track, pkt)
		}
	}
}

func logFirstPacket(label string, track *pion.TrackRemote, pkt *rtp.Packet) {
	slog.Debug("first remote media packet",
		"peer", label,
		"kind", track.Kind().String(),
		"ssrc", pkt.SSRC,
		"payloadType", pkt.PayloadType,
		"seq", pkt.SequenceNumber)
}

func (h *pionHandle) CreateOffer() (pion.SessionDescription, error) {
	opts := &pion.OfferOptions{ICERestart: h.restart.Swap(false)}
	return h.pc.CreateOffer(opts)
}

func (h *pionHandle) CreateAnswer() (pion.SessionDescription, error) {
	return h.pc.CreateAnswer(nil)
}

func (h *pionHandle) SetLocalDescription(d pion.SessionDescription) error {
	return h.pc.SetLocalDescription(d)
}

func (h *pionHandle) SetRemoteDescription(d pion.SessionDescription) error {
	return h.pc.SetRemoteDescription(d)
}

func (h *pionHandle) AddICECandidate(c pion.ICECandidateInit) error {
	return h.pc.AddICECandidate(c)
}

func (h *pionHandle) AddTrack(track pion.TrackLocal) error {
	sender, err := h.pc.AddTrack(track)
	if err != nil {
		return err
	}

	// Read incoming RTCP so interceptors (NACK, reports) keep working.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (h *pionHandle) RestartICE() {
	h.restart.Store(true)
}

func (h *pionHandle) ICEConnectionState() pion.ICEConnectionState {
	return h.pc.ICEConnectionState()
}

func (h *pionHandle) LocalDescription() *pion.SessionDescription {
	return h.pc.LocalDescription()
}

func (h *pionHandle) RemoteDescription() *pion.SessionDescription {
	return h.pc.RemoteDescription()
}

func (h *pionHandle) Events() <-chan Event {
	return h.events
}

// Close releases the peer connection. Only the first call does any work;
// later calls return nil.
func (h *pionHandle) Close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		err = h.pc.Close()
	})
	return err
}
