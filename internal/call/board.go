package call

import (
	"slices"

	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// Tile is the rendered slot of one remote peer.
type Tile struct {
	Peer     signaling.PeerID
	StreamID string
	State    pion.ICEConnectionState
}

// BoardSnapshot is what the UI draws: tiles in order plus the grid that
// places them.
type BoardSnapshot struct {
	Tiles []Tile
	Grid  layout.Grid
}

// Board keeps the tiles and recomputes the grid when the tile count changes
// or the orientation flips.
type Board struct {
	tiles       []Tile
	orientation *layout.Orientation
	grid        layout.Grid
	dirty       bool
}

func NewBoard(width, height int) *Board {
	b := &Board{orientation: layout.NewOrientation(width, height)}
	b.grid = layout.Compute(0, b.orientation.Landscape())
	b.dirty = true
	return b
}

func (b *Board) index(peer signaling.PeerID) int {
	return slices.IndexFunc(b.tiles, func(t Tile) bool { return t.Peer == peer })
}

// Add creates an empty tile for peer. Adding an existing peer is a no-op.
func (b *Board) Add(peer signaling.PeerID) {
	if b.index(peer) >= 0 {
		return
	}
	b.tiles = append(b.tiles, Tile{Peer: peer, State: pion.ICEConnectionStateNew})
	b.relayout()
}

// Remove deletes the peer's tile.
func (b *Board) Remove(peer signaling.PeerID) {
	i := b.index(peer)
	if i < 0 {
		return
	}
	b.tiles = slices.Delete(b.tiles, i, i+1)
	b.relayout()
}

// Clear removes every tile.
func (b *Board) Clear() {
	if len(b.tiles) == 0 {
		return
	}
	b.tiles = nil
	b.relayout()
}

// Attach binds a remote stream to the peer's tile. It reports false when the
// tile is missing or already shows that stream.
func (b *Board) Attach(peer signaling.PeerID, streamID string) bool {
	i := b.index(peer)
	if i < 0 || b.tiles[i].StreamID == streamID {
		return false
	}
	b.tiles[i].StreamID = streamID
	b.dirty = true
	return true
}

// SetState records the peer's connectivity for display.
func (b *Board) SetState(peer signaling.PeerID, state pion.ICEConnectionState) {
	i := b.index(peer)
	if i < 0 || b.tiles[i].State == state {
		return
	}
	b.tiles[i].State = state
	b.dirty = true
}

// Resize reports whether the new container size flipped the orientation and
// therefore changed the grid.
func (b *Board) Resize(width, height int) bool {
	if !b.orientation.Observe(width, height) {
		return false
	}
	before := b.grid
	b.relayout()
	return !sameGrid(before, b.grid)
}

func (b *Board) relayout() {
	b.grid = layout.Compute(len(b.tiles), b.orientation.Landscape())
	b.dirty = true
}

// Grid is the current grid.
func (b *Board) Grid() layout.Grid {
	return b.grid
}

// Snapshot returns a copy of the board and clears the dirty mark.
func (b *Board) Snapshot() BoardSnapshot {
	b.dirty = false
	return BoardSnapshot{
		Tiles: slices.Clone(b.tiles),
		Grid:  b.grid,
	}
}

func sameGrid(a, b layout.Grid) bool {
	return a.Columns == b.Columns && a.Landscape == b.Landscape &&
		a.TileCount == b.TileCount && slices.Equal(a.Spans, b.Spans)
}
