package journal

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	w.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	if err := w.Record(0, KindJoin, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record(2, KindSessionOpened, "initiator"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record(2, KindICEState, "connected"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len=%d, want 3", len(entries))
	}
	for _, e := range entries {
		if e.CallID != w.CallID() {
			t.Fatalf("CallID=%q, want %q", e.CallID, w.CallID())
		}
	}
	if e := entries[1]; e.Peer != 2 || e.Kind != KindSessionOpened || e.Detail != "initiator" {
		t.Fatalf("entry=%+v", e)
	}
	if !entries[2].At.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("At=%v", entries[2].At)
	}
}

func TestRead_Truncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Record(1, KindJoin, "")
	w.Record(1, KindHangup, "")

	data := buf.Bytes()[:buf.Len()-3]
	entries, err := Read(bytes.NewReader(data))
	if err == nil {
		t.Fatalf("expected error on truncated input")
	}
	if len(entries) != 1 {
		t.Fatalf("len=%d, want 1 complete entry", len(entries))
	}
}

func TestCreate_AppendsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.journal")

	for i := 0; i < 2; i++ {
		w, err := Create(path)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		w.Record(5, KindSessionOpened, "")
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	s := Summarize(entries)
	if len(s.Calls) != 2 {
		t.Fatalf("Calls=%v, want 2 distinct ids", s.Calls)
	}
	if s.Counts[KindSessionOpened] != 2 {
		t.Fatalf("Counts=%v", s.Counts)
	}
	if len(s.Peers) != 1 || s.Peers[0] != 5 {
		t.Fatalf("Peers=%v", s.Peers)
	}
}
