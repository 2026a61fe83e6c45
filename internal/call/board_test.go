package call

import (
	"testing"

	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
	"github.com/BioHazard786/Warpdrop/meet/internal/transport/transporttest"
	pion "github.com/pion/webrtc/v4"
)

func TestBoard_RecomputesOnTileCount(t *testing.T) {
	b := NewBoard(160, 90)
	for _, peer := range []int{2, 3, 4} {
		b.Add(signalingPeer(peer))
	}
	b.Add(2)

	g := b.Grid()
	if g.TileCount != 3 || g.Columns != layout.TwoColumns {
		t.Fatalf("grid=%+v, want 3 tiles on two columns", g)
	}
	if g.Spans[2] != layout.CenteredSpan {
		t.Fatalf("last span=%v, want centered", g.Spans[2])
	}

	b.Remove(3)
	if g := b.Grid(); g.TileCount != 2 || g.Spans[1] != layout.RegularSpan {
		t.Fatalf("grid after remove=%+v", g)
	}
	b.Clear()
	if g := b.Grid(); g.TileCount != 0 {
		t.Fatalf("grid after clear=%+v", g)
	}
}

func TestBoard_RelayoutOnlyOnOrientationFlip(t *testing.T) {
	b := NewBoard(160, 90)
	for _, peer := range []int{2, 3, 4, 5, 6} {
		b.Add(signalingPeer(peer))
	}
	if g := b.Grid(); g.Columns != layout.ThreeColumns || !g.Landscape {
		t.Fatalf("landscape grid=%+v", g)
	}
	b.Snapshot()

	if b.Resize(200, 100) {
		t.Fatalf("resize within landscape reported a change")
	}
	if b.dirty {
		t.Fatalf("resize within landscape dirtied the board")
	}

	if !b.Resize(90, 160) {
		t.Fatalf("flip to portrait not reported")
	}
	g := b.Grid()
	if g.Landscape || g.Columns != layout.TwoColumns {
		t.Fatalf("portrait grid=%+v, want two columns", g)
	}
	if g.Spans[4] != layout.CenteredSpan {
		t.Fatalf("portrait 5th span=%v, want centered", g.Spans[4])
	}

	if b.Resize(80, 150) {
		t.Fatalf("resize within portrait reported a change")
	}
}

func TestBoard_AttachAndState(t *testing.T) {
	b := NewBoard(160, 90)
	b.Add(2)
	b.Snapshot()

	if b.Attach(9, "s") {
		t.Fatalf("attached to a missing tile")
	}
	if !b.Attach(2, "s") {
		t.Fatalf("first attach failed")
	}
	if b.Attach(2, "s") {
		t.Fatalf("duplicate attach reported a change")
	}
	b.SetState(2, pion.ICEConnectionStateConnected)

	snap := b.Snapshot()
	if len(snap.Tiles) != 1 || snap.Tiles[0].StreamID != "s" || snap.Tiles[0].State != pion.ICEConnectionStateConnected {
		t.Fatalf("snapshot=%+v", snap)
	}
	if b.dirty {
		t.Fatalf("snapshot did not clear dirty")
	}

	snap.Tiles[0].StreamID = "mutated"
	if b.Snapshot().Tiles[0].StreamID != "s" {
		t.Fatalf("snapshot aliases board state")
	}
}

func TestTable_PutRemove(t *testing.T) {
	f := transporttest.NewFactory()
	tbl := NewTable()

	h2, _ := f.NewHandle("2")
	h3, _ := f.NewHandle("3")
	s2 := newSession(2, Initiator, h2)
	s3 := newSession(3, Initiator, h3)

	if !tbl.Put(s2) || !tbl.Put(s3) {
		t.Fatalf("Put failed")
	}
	dup, _ := f.NewHandle("2")
	if tbl.Put(newSession(2, Responder, dup)) {
		t.Fatalf("second session for the same peer accepted")
	}
	if tbl.Get(2) != s2 {
		t.Fatalf("Get returned a different session")
	}

	clock := &fakeClock{}
	s2.pending[Failed] = clock.AfterFunc(DefaultFailedDelay, func() { t.Errorf("timer fired after removal") })

	removed, err := tbl.Remove(2)
	if err != nil || removed != s2 {
		t.Fatalf("Remove=%v,%v", removed, err)
	}
	if !h2.(*transporttest.Handle).Closed() {
		t.Fatalf("handle not closed")
	}
	if s2.Pending(Failed) || clock.Active() != 0 {
		t.Fatalf("timer not stopped")
	}
	clock.Advance(DefaultFailedDelay)

	if got := tbl.Peers(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("Peers=%v", got)
	}
	if s, err := tbl.Remove(2); s != nil || err != nil {
		t.Fatalf("second Remove=%v,%v", s, err)
	}
	tbl.Remove(3)
	dup.Close()
}
