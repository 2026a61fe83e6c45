// Package media owns the local capture tracks shared by every call session.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// Kind is a local track kind.
type Kind string

const (
	Video Kind = "video"
	Audio Kind = "audio"
)

var ErrUnknownKind = errors.New("unknown media kind")

// opusSilence is a single 20ms Opus frame that decodes to silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameDuration = 20 * time.Millisecond

// Local is the local capture stream: one video and one audio track plus
// per-kind enabled flags. Sessions only read it.
type Local struct {
	streamID string
	video    *pion.TrackLocalStaticSample
	audio    *pion.TrackLocalStaticSample

	mu      sync.RWMutex
	enabled map[Kind]bool
}

// NewLocal creates VP8 video and Opus audio tracks under a fresh stream id.
// Both kinds start enabled.
func NewLocal() (*Local, error) {
	streamID := "meet-" + uuid.NewString()

	video, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8, ClockRate: 90000},
		"video", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}

	audio, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	return &Local{
		streamID: streamID,
		video:    video,
		audio:    audio,
		enabled:  map[Kind]bool{Video: true, Audio: true},
	}, nil
}

func (l *Local) StreamID() string {
	return l.streamID
}

// Tracks returns every local track in attach order.
func (l *Local) Tracks() []pion.TrackLocal {
	return []pion.TrackLocal{l.video, l.audio}
}

// Enabled reports whether samples of kind are being sent.
func (l *Local) Enabled(kind Kind) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled[kind]
}

// Toggle flips the enabled flag of kind and returns the new value.
func (l *Local) Toggle(kind Kind) (bool, error) {
	if kind != Video && kind != Audio {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled[kind] = !l.enabled[kind]
	return l.enabled[kind], nil
}

// WriteSample sends one encoded sample on the track of kind. Samples for a
// disabled kind are discarded.
func (l *Local) WriteSample(kind Kind, s pionmedia.Sample) error {
	var track *pion.TrackLocalStaticSample
	switch kind {
	case Video:
		track = l.video
	case Audio:
		track = l.audio
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !l.Enabled(kind) {
		return nil
	}
	return track.WriteSample(s)
}

// Silence writes Opus silence on the audio track until ctx is done, so that
// remote peers observe the stream even without a capture device.
func (l *Local) Silence(ctx context.Context) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = l.WriteSample(Audio, pionmedia.Sample{Data: opusSilence, Duration: frameDuration})
		}
	}
}
