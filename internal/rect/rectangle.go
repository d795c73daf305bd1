// Package rect implements the rectangle algebra that drives every
// tile-selection and storage decision in TASM: intersection, overlap,
// containment, and the repeated-merge fusion used by the Grouped layout
// provider.
package rect

// ID identifies a rectangle's origin (usually an object-box identifier or
// a tile index, depending on context). Zero is a valid id.
type ID uint64

// Rectangle is a half-open axis-aligned rectangle: it covers
// [X, X+Width) x [Y, Y+Height). All fields are normalized on construction
// so that X, Y, Width, and Height are always even.
type Rectangle struct {
	ID     ID
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// New builds a normalized Rectangle. Odd x/y are rounded down by one; the
// width/height are then measured from the new origin to the requested
// right/bottom edge and rounded up to even. The normalized rectangle always
// contains the requested region.
func New(id ID, x, y, width, height uint32) Rectangle {
	right, bottom := x+width, y+height
	if x%2 != 0 {
		x--
	}
	if y%2 != 0 {
		y--
	}
	width, height = right-x, bottom-y
	if width%2 != 0 {
		width++
	}
	if height%2 != 0 {
		height++
	}
	return Rectangle{ID: id, X: x, Y: y, Width: width, Height: height}
}

// Equal reports structural equality, including ID.
func (r Rectangle) Equal(o Rectangle) bool {
	return r.ID == o.ID && r.X == o.X && r.Y == o.Y && r.Width == o.Width && r.Height == o.Height
}

// HasEqualDimensions reports whether two rectangles have the same width
// and height, ignoring position and id.
func (r Rectangle) HasEqualDimensions(o Rectangle) bool {
	return r.Width == o.Width && r.Height == o.Height
}

// Area returns width * height.
func (r Rectangle) Area() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}

// Right returns the exclusive right edge, X+Width.
func (r Rectangle) Right() uint32 { return r.X + r.Width }

// Bottom returns the exclusive bottom edge, Y+Height.
func (r Rectangle) Bottom() uint32 { return r.Y + r.Height }

// ContainsPoint reports whether (x, y) falls within the rectangle, with
// the right and bottom edges treated as exclusive.
func (r Rectangle) ContainsPoint(x, y uint32) bool {
	return r.X <= x && r.Y <= y && r.Right() > x && r.Bottom() > y
}

// Intersects reports whether two rectangles overlap, using half-open
// right/bottom edges: two rectangles that only touch at an edge do not
// intersect.
func (r Rectangle) Intersects(o Rectangle) bool {
	return !(r.X >= o.Right() || o.X >= r.Right() ||
		r.Y >= o.Bottom() || o.Y >= r.Bottom())
}

// Overlap returns the intersection rectangle of r and o. The returned
// rectangle inherits o's ID. The caller must check Intersects first;
// Overlap on non-intersecting rectangles returns a rectangle with zero or
// negative (wrapped) width/height.
func (r Rectangle) Overlap(o Rectangle) Rectangle {
	top := max32(r.Y, o.Y)
	bottom := min32(r.Bottom(), o.Bottom())
	left := max32(r.X, o.X)
	right := min32(r.Right(), o.Right())
	return Rectangle{ID: o.ID, X: left, Y: top, Width: right - left, Height: bottom - top}
}

// Expand grows r in place to the bounding union of r and o, and returns
// the updated value. Rectangle is a value type; callers that want the
// mutation to stick must assign the result back, e.g. `r = r.Expand(o)`.
func (r Rectangle) Expand(o Rectangle) Rectangle {
	left := min32(r.X, o.X)
	right := max32(r.Right(), o.Right())
	top := min32(r.Y, o.Y)
	bottom := max32(r.Bottom(), o.Bottom())
	r.X = left
	r.Width = right - left
	r.Y = top
	r.Height = bottom - top
	return r
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
