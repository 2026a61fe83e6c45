// Package journal records what happened during a call as a stream of
// msgpack entries, one call per file.
package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Kind classifies an entry.
type Kind string

const (
	KindStatus        Kind = "status"
	KindJoin          Kind = "join"
	KindHangup        Kind = "hangup"
	KindRoster        Kind = "roster"
	KindSessionOpened Kind = "session-opened"
	KindSessionClosed Kind = "session-closed"
	KindICEState      Kind = "ice-state"
	KindTrack         Kind = "track"
	KindRecovery      Kind = "recovery"
	KindFailure       Kind = "failure"
)

// Entry is one journal record. Peer is zero for entries about the call as a
// whole.
type Entry struct {
	CallID string           `msgpack:"callId"`
	At     time.Time        `msgpack:"at"`
	Peer   signaling.PeerID `msgpack:"peer,omitempty"`
	Kind   Kind             `msgpack:"kind"`
	Detail string           `msgpack:"detail,omitempty"`
}

// Writer appends entries to an underlying stream. It is safe for concurrent
// use.
type Writer struct {
	callID string
	now    func() time.Time

	mu  sync.Mutex
	enc *msgpack.Encoder
	c   io.Closer
}

// NewWriter starts a journal for a new call on w.
func NewWriter(w io.Writer) *Writer {
	jw := &Writer{
		callID: uuid.NewString(),
		now:    time.Now,
		enc:    msgpack.NewEncoder(w),
	}
	if c, ok := w.(io.Closer); ok {
		jw.c = c
	}
	return jw
}

// Create opens path for appending and starts a journal on it.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return NewWriter(f), nil
}

// CallID identifies every entry written by w.
func (w *Writer) CallID() string {
	return w.callID
}

// Record appends one entry.
func (w *Writer) Record(peer signaling.PeerID, kind Kind, detail string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(&Entry{
		CallID: w.callID,
		At:     w.now().UTC(),
		Peer:   peer,
		Kind:   kind,
		Detail: detail,
	})
}

// Close closes the underlying stream if it is closable.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.c == nil {
		return nil
	}
	return w.c.Close()
}

// Read decodes every entry in r. A truncated trailing entry is reported
// together with the entries read before it.
func Read(r io.Reader) ([]Entry, error) {
	br := bufio.NewReader(r)
	dec := msgpack.NewDecoder(br)
	var entries []Entry
	for {
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return entries, err
		}
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return entries, fmt.Errorf("decode journal entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
}

// ReadFile reads a journal file written by Create.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Summary counts entries per kind and lists the peers seen.
type Summary struct {
	Calls  []string
	Counts map[Kind]int
	Peers  []signaling.PeerID
	From   time.Time
	To     time.Time
}

// Summarize folds entries into a Summary. Order of calls and peers follows
// first appearance.
func Summarize(entries []Entry) Summary {
	s := Summary{Counts: make(map[Kind]int)}
	calls := make(map[string]bool)
	peers := make(map[signaling.PeerID]bool)

	for i, e := range entries {
		if i == 0 || e.At.Before(s.From) {
			s.From = e.At
		}
		if e.At.After(s.To) {
			s.To = e.At
		}
		s.Counts[e.Kind]++
		if !calls[e.CallID] {
			calls[e.CallID] = true
			s.Calls = append(s.Calls, e.CallID)
		}
		if e.Peer != 0 && !peers[e.Peer] {
			peers[e.Peer] = true
			s.Peers = append(s.Peers, e.Peer)
		}
	}
	return s
}
