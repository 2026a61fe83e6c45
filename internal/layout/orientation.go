package layout

// IsLandscape is the orientation comparator: wider than tall.
func IsLandscape(width, height int) bool {
	return width > height
}

// Orientation remembers the last observed orientation so callers relayout
// only when it flips, not on every resize.
type Orientation struct {
	landscape bool
	known     bool
}

// NewOrientation seeds the tracker with an initial viewport.
func NewOrientation(width, height int) *Orientation {
	return &Orientation{landscape: IsLandscape(width, height), known: true}
}

// Landscape returns the current orientation. An unseeded tracker reports
// landscape.
func (o *Orientation) Landscape() bool {
	if !o.known {
		return true
	}
	return o.landscape
}

// Observe records a viewport size and reports whether the orientation
// changed since the previous observation.
func (o *Orientation) Observe(width, height int) bool {
	next := IsLandscape(width, height)
	if !o.known {
		o.landscape = next
		o.known = true
		return true
	}
	if next == o.landscape {
		return false
	}
	o.landscape = next
	return true
}
