package layout

import "fmt"

// Columns is the number of tile columns the grid is rendered with.
type Columns int

const (
	OneColumn    Columns = 1
	TwoColumns   Columns = 2
	ThreeColumns Columns = 3
)

func (c Columns) String() string {
	switch c {
	case OneColumn:
		return "one-column-grid"
	case TwoColumns:
		return "two-columns-grid"
	case ThreeColumns:
		return "three-columns-grid"
	default:
		return fmt.Sprintf("columns(%d)", int(c))
	}
}

// CellsPerTile is how many grid cells a regular tile occupies. The grid has
// CellsPerTile cells per column so a tile can be offset by a single cell.
const CellsPerTile = 2

// Span places a tile on the underlying cell grid. Start is the 1-based cell
// the tile begins at; zero means auto placement.
type Span struct {
	Start int
	Cells int
}

var (
	// RegularSpan is auto placed and two cells wide.
	RegularSpan = Span{Start: 0, Cells: CellsPerTile}

	// CenteredSpan starts at the second cell, used to center a lone tile in a
	// two column row or a pair of tiles in a three column row.
	CenteredSpan = Span{Start: 2, Cells: CellsPerTile}

	// BalancedSpan starts at the third cell, centering a lone tile in a three
	// column row.
	BalancedSpan = Span{Start: 3, Cells: CellsPerTile}
)

// IsRegular reports whether the tile uses auto placement.
func (s Span) IsRegular() bool {
	return s.Start == 0
}

func (s Span) String() string {
	if s.IsRegular() {
		return fmt.Sprintf("col-span-%d", s.Cells)
	}
	return fmt.Sprintf("col-%d-span-%d", s.Start, s.Cells)
}

// Grid is the computed layout for one tile set.
type Grid struct {
	Columns   Columns
	Landscape bool
	TileCount int
	Spans     []Span
}

// Cells returns the number of cells in one row of the grid.
func (g Grid) Cells() int {
	return int(g.Columns) * CellsPerTile
}

// Size is a width/height pair in whatever unit the caller renders with.
type Size struct {
	Width  float64
	Height float64
}

// DefaultContainer is the viewport share the tile area occupies, in percent.
var DefaultContainer = Size{Width: 90, Height: 85}

// Compute returns the layout for tileCount tiles. It is a pure function of its
// arguments.
func Compute(tileCount int, landscape bool) Grid {
	if tileCount < 0 {
		tileCount = 0
	}

	g := Grid{
		Columns:   columnsFor(tileCount, landscape),
		Landscape: landscape,
		TileCount: tileCount,
		Spans:     make([]Span, tileCount),
	}
	for i := range g.Spans {
		g.Spans[i] = g.spanFor(i)
	}
	return g
}

func columnsFor(n int, landscape bool) Columns {
	switch {
	case (landscape && n <= 1) || (!landscape && n <= 2):
		return OneColumn
	case (landscape && n <= 4) || (!landscape && n <= 6):
		return TwoColumns
	default:
		return ThreeColumns
	}
}

func (g Grid) spanFor(idx int) Span {
	n := g.TileCount

	switch g.Columns {
	case TwoColumns:
		// Single trailing tile in an otherwise full two column grid.
		if (n == 3 && idx == 2) || (!g.Landscape && n == 5 && idx == 4) {
			return CenteredSpan
		}
	case ThreeColumns:
		// First of a trailing pair.
		if (g.Landscape && n == 5 && idx == 3) || (n == 8 && idx == 6) {
			return CenteredSpan
		}
		// Single trailing tile.
		if n == 7 && idx == 6 {
			return BalancedSpan
		}
	}
	return RegularSpan
}

// TileMax returns the largest size a single tile may take inside container.
func (g Grid) TileMax(container Size) Size {
	n := g.TileCount

	var rows float64
	switch {
	case (g.Landscape && n <= 2) || (!g.Landscape && n <= 1):
		rows = 1
	case n <= 4:
		rows = 2
	default:
		rows = 3
	}

	return Size{
		Width:  container.Width / float64(g.Columns),
		Height: container.Height / rows,
	}
}
