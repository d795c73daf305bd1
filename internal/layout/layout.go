// Package layout implements the TileLayout partition model (§3, §4.B) and
// the family of LayoutProviders that choose a layout per frame or per GOP
// (§4.C).
package layout

import (
	"fmt"

	"github.com/faromero/tasm/internal/rect"
)

// TileIndex is a row-major tile number: tile = row*columns + col.
type TileIndex int

// CodecAlignment is the pixel multiple tile boundaries must respect so the
// hardware encoder/decoder can reconfigure at a tile edge. Carried over
// from the original implementation's codec-alignment constant (see
// SPEC_FULL.md §12).
const CodecAlignment = 32

// TileLayout is an immutable partition of a frame into a grid of tiles.
// Tiles are numbered row-major: tile = row*columns + col, so
// 0 <= tile < columns*rows.
type TileLayout struct {
	columns int
	rows    int
	widths  []uint32
	heights []uint32
}

// EmptyTileLayout is the distinguished "no tiles yet" sentinel: a single
// 1x1 tile of size 1x1.
var EmptyTileLayout = TileLayout{
	columns: 1,
	rows:    1,
	widths:  []uint32{1},
	heights: []uint32{1},
}

// NewExplicit builds a TileLayout from explicit per-column widths and
// per-row heights; columns and rows are the slice lengths. It returns an
// error if either slice is empty, per §3's invariants.
func NewExplicit(widths, heights []uint32) (TileLayout, error) {
	if len(widths) == 0 || len(heights) == 0 {
		return TileLayout{}, fmt.Errorf("layout: columns and rows must each be >= 1, got %d widths, %d heights", len(widths), len(heights))
	}
	return TileLayout{
		columns: len(widths),
		rows:    len(heights),
		widths:  append([]uint32(nil), widths...),
		heights: append([]uint32(nil), heights...),
	}, nil
}

// NewUniform builds a layout of columns x rows equal-size cells over a
// (width, height) frame. Truncation (not rounding) is used for the cell
// size; the last column/row absorbs no extra width/height, matching a
// strict floor division of coded dimensions.
func NewUniform(columns, rows int, width, height uint32) (TileLayout, error) {
	if columns < 1 || rows < 1 {
		return TileLayout{}, fmt.Errorf("layout: columns and rows must each be >= 1, got columns=%d rows=%d", columns, rows)
	}
	widths := make([]uint32, columns)
	for i := range widths {
		widths[i] = width / uint32(columns)
	}
	heights := make([]uint32, rows)
	for i := range heights {
		heights[i] = height / uint32(rows)
	}
	return TileLayout{columns: columns, rows: rows, widths: widths, heights: heights}, nil
}

// cumulativeSplit divides total into n strips whose sizes are
// ((i+1)*total)/n - (i*total)/n, which never lets the cumulative width
// exceed total and spreads any remainder across the later strips.
func cumulativeSplit(total uint32, n int) []uint32 {
	out := make([]uint32, n)
	var prev uint32
	for i := 0; i < n; i++ {
		cum := uint32((uint64(i+1) * uint64(total)) / uint64(n))
		out[i] = cum - prev
		prev = cum
	}
	return out
}

// NewUniformCoded builds a columns x rows layout the way the original's
// tile_dimensions did: strip sizes are computed by cumulative division of
// the coded dimension (which may include codec padding beyond what's
// actually shown), then each strip is clamped so the running total never
// exceeds the display dimension, per §4.C.
func NewUniformCoded(columns, rows int, codedWidth, codedHeight, displayWidth, displayHeight uint32) (TileLayout, error) {
	if columns < 1 || rows < 1 {
		return TileLayout{}, fmt.Errorf("layout: columns and rows must each be >= 1, got columns=%d rows=%d", columns, rows)
	}
	widths := clampedSplit(codedWidth, displayWidth, columns)
	heights := clampedSplit(codedHeight, displayHeight, rows)
	return TileLayout{columns: columns, rows: rows, widths: widths, heights: heights}, nil
}

// clampedSplit divides codedTotal into n strips via the same cumulative
// rule as cumulativeSplit, then clamps each proposed strip so the running
// total never exceeds displayTotal, matching tile_dimensions' coded vs.
// display distinction (codedTotal == displayTotal degenerates to a plain
// cumulativeSplit).
func clampedSplit(codedTotal, displayTotal uint32, n int) []uint32 {
	out := make([]uint32, n)
	var prev, total uint32
	for i := 0; i < n; i++ {
		cum := uint32((uint64(i+1) * uint64(codedTotal)) / uint64(n))
		proposed := cum - prev
		prev = cum
		if total+proposed > displayTotal {
			proposed = displayTotal - total
		}
		out[i] = proposed
		total += proposed
	}
	return out
}

// Columns returns the number of tile columns.
func (l TileLayout) Columns() int { return l.columns }

// Rows returns the number of tile rows.
func (l TileLayout) Rows() int { return l.rows }

// Widths returns the per-column widths. The caller must not mutate it.
func (l TileLayout) Widths() []uint32 { return l.widths }

// Heights returns the per-row heights. The caller must not mutate it.
func (l TileLayout) Heights() []uint32 { return l.heights }

// NumberOfTiles returns columns * rows.
func (l TileLayout) NumberOfTiles() int { return l.columns * l.rows }

// TotalWidth returns the sum of all column widths.
func (l TileLayout) TotalWidth() uint32 {
	var sum uint32
	for _, w := range l.widths {
		sum += w
	}
	return sum
}

// TotalHeight returns the sum of all row heights.
func (l TileLayout) TotalHeight() uint32 {
	var sum uint32
	for _, h := range l.heights {
		sum += h
	}
	return sum
}

// Equal reports structural equality: same columns, rows, widths, heights.
func (l TileLayout) Equal(o TileLayout) bool {
	if l.columns != o.columns || l.rows != o.rows {
		return false
	}
	for i := range l.widths {
		if l.widths[i] != o.widths[i] {
			return false
		}
	}
	for i := range l.heights {
		if l.heights[i] != o.heights[i] {
			return false
		}
	}
	return true
}

// RectangleForTile returns the rectangle (id=0) covered by the given
// row-major tile index.
func (l TileLayout) RectangleForTile(t TileIndex) rect.Rectangle {
	col := int(t) % l.columns
	row := int(t) / l.columns

	var left, top uint32
	for i := 0; i < col; i++ {
		left += l.widths[i]
	}
	for i := 0; i < row; i++ {
		top += l.heights[i]
	}

	return rect.Rectangle{ID: 0, X: left, Y: top, Width: l.widths[col], Height: l.heights[row]}
}

// TilesForRectangle returns every tile whose rectangle intersects r, in
// row-major order.
func (l TileLayout) TilesForRectangle(r rect.Rectangle) []TileIndex {
	var tiles []TileIndex
	for t := 0; t < l.NumberOfTiles(); t++ {
		if l.RectangleForTile(TileIndex(t)).Intersects(r) {
			tiles = append(tiles, TileIndex(t))
		}
	}
	return tiles
}

// RectangleIdsThatIntersectTile returns the set of rectangle IDs, among
// rectangles, whose rectangle intersects the given tile's rectangle.
func (l TileLayout) RectangleIdsThatIntersectTile(rectangles []rect.Rectangle, t TileIndex) []rect.ID {
	tileRect := l.RectangleForTile(t)
	var ids []rect.ID
	for _, r := range rectangles {
		if tileRect.Intersects(r) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
