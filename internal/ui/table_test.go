package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/journal"
	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
)

func TestFormatTimeDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + time.Minute + time.Second, "2h 1m 1s"},
	}
	for _, tt := range tests {
		if got := FormatTimeDuration(tt.d); got != tt.want {
			t.Errorf("FormatTimeDuration(%v)=%q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestJournalView(t *testing.T) {
	at := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	entries := []journal.Entry{
		{CallID: "0123456789abcdef", At: at, Kind: journal.KindJoin},
		{CallID: "0123456789abcdef", At: at.Add(time.Second), Peer: 2, Kind: journal.KindSessionOpened, Detail: "initiator"},
		{CallID: "0123456789abcdef", At: at.Add(90 * time.Second), Peer: 2, Kind: journal.KindRecovery, Detail: "disconnected"},
	}

	// go-pretty upper-cases the footer.
	out := strings.ToLower(JournalView(entries))
	for _, want := range []string{"01234567", "session-opened", "initiator", "1 calls", "1 peers", "1m 30s", "recovery=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("journal view is missing %q", want)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Errorf("call id not shortened")
	}
}

func TestJournalView_Empty(t *testing.T) {
	if out := JournalView(nil); !strings.Contains(out, "empty") {
		t.Fatalf("got %q", out)
	}
}

func TestGridView(t *testing.T) {
	out := GridView(layout.Compute(7, true))
	for _, want := range []string{"three-columns-grid", "landscape", "col-3-span-2", "col-span-2"} {
		if !strings.Contains(out, want) {
			t.Errorf("grid view is missing %q", want)
		}
	}
}
