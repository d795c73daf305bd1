package rect

// Merger owns a mutable list of rectangles and repeatedly fuses any two
// intersecting rectangles into their bounding union until a full pass
// makes no further change. Each merge reduces the list by one element, so
// termination is bounded by the initial rectangle count.
type Merger struct {
	rectangles []Rectangle
}

// NewMerger builds a Merger seeded with the given rectangles and performs
// the initial merge pass immediately.
func NewMerger(rectangles []Rectangle) *Merger {
	m := &Merger{rectangles: append([]Rectangle(nil), rectangles...)}
	m.merge()
	return m
}

// AddRectangle merges a new rectangle into the current list: it expands
// every rectangle that intersects it (there may be more than one, which
// the subsequent merge pass then fuses together), or appends it unchanged
// if nothing intersects.
func (m *Merger) AddRectangle(o Rectangle) {
	merged := false
	for i := range m.rectangles {
		if m.rectangles[i].Intersects(o) {
			m.rectangles[i] = m.rectangles[i].Expand(o)
			merged = true
		}
	}
	if !merged {
		m.rectangles = append(m.rectangles, o)
	}
	m.merge()
}

// Rectangles returns the current, fully merged rectangle list. The
// returned slice must not be mutated by the caller.
func (m *Merger) Rectangles() []Rectangle {
	return m.rectangles
}

// merge repeatedly scans for any intersecting pair and fuses it into its
// bounding union, restarting the scan after each fusion, until a full pass
// finds nothing left to merge.
func (m *Merger) merge() {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(m.rectangles); i++ {
			for j := i + 1; j < len(m.rectangles); j++ {
				if m.rectangles[i].Intersects(m.rectangles[j]) {
					m.rectangles[i] = m.rectangles[i].Expand(m.rectangles[j])
					m.rectangles = append(m.rectangles[:j], m.rectangles[j+1:]...)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
}
