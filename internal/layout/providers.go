package layout

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/faromero/tasm/internal/rect"
)

// Provider is the layout-provider contract from spec.md §6: a stable,
// read-safe mapping from frame number to the layout that covers it.
type Provider interface {
	LayoutForFrame(frame uint32) TileLayout
}

// SingleProvider returns one static layout covering the whole frame,
// regardless of the frame number requested.
type SingleProvider struct {
	layout TileLayout
}

// NewSingleProvider wraps a layout as a constant provider. Typically
// constructed with a single full-frame tile (columns=1, rows=1).
func NewSingleProvider(l TileLayout) *SingleProvider {
	return &SingleProvider{layout: l}
}

// LayoutForFrame always returns the wrapped layout.
func (p *SingleProvider) LayoutForFrame(frame uint32) TileLayout { return p.layout }

// UniformProvider returns one R x C layout over a fixed (codedWidth,
// displayWidth) configuration, regardless of the frame number requested.
type UniformProvider struct {
	layout TileLayout
}

// NewUniformProvider builds a rows x columns uniform layout over the given
// coded/display dimensions. Strip sizes are derived from
// codedWidth/codedHeight; displayWidth/displayHeight bound the total
// layout size so that cumulative strip widths never exceed the display
// area, per §4.C.
func NewUniformProvider(rows, columns int, codedWidth, codedHeight, displayWidth, displayHeight uint32) (*UniformProvider, error) {
	l, err := NewUniformCoded(columns, rows, codedWidth, codedHeight, displayWidth, displayHeight)
	if err != nil {
		return nil, err
	}
	return &UniformProvider{layout: l}, nil
}

// LayoutForFrame always returns the wrapped uniform layout.
func (p *UniformProvider) LayoutForFrame(frame uint32) TileLayout { return p.layout }

// PerGOPProvider maps a frame to the layout of the GOP it belongs to,
// gop = frame / gopLength. It backs FineGrained, Grouped, and
// Conglomeration (§4.C): the only difference between those three variants
// is how the per-GOP map was built, not how it is looked up.
type PerGOPProvider struct {
	gopLength uint32
	layouts   map[uint32]TileLayout
	fallback  TileLayout
}

// LayoutForFrame returns the layout for frame's GOP, or the fallback
// layout (EmptyTileLayout, the 1x1 "no tiles yet" sentinel) if that GOP
// has no entry.
func (p *PerGOPProvider) LayoutForFrame(frame uint32) TileLayout {
	gop := frame / p.gopLength
	if l, ok := p.layouts[gop]; ok {
		return l
	}
	return p.fallback
}

// NewConglomeration builds a PerGOPProvider from an explicit map<gop,
// layout>, used when a regret-driven re-tile (§4.J) prescribes a per-GOP
// plan for the next TileOperator pass (§4.G).
func NewConglomeration(gopLength uint32, layouts map[uint32]TileLayout) (*PerGOPProvider, error) {
	if gopLength == 0 {
		return nil, fmt.Errorf("layout: gopLength must be > 0")
	}
	cp := make(map[uint32]TileLayout, len(layouts))
	for k, v := range layouts {
		cp[k] = v
	}
	return &PerGOPProvider{gopLength: gopLength, layouts: cp, fallback: EmptyTileLayout}, nil
}

// GOPObjects supplies, for each GOP index, the object-box rectangles
// gathered across every frame in that GOP. It is the §4.H
// SemanticDataManager's contribution to layout choice.
type GOPObjects func(gop uint32) []rect.Rectangle

// NewFineGrained builds one layout per GOP in [firstGOP, lastGOP]: the
// column boundaries are the sorted, codec-aligned, distinct x-edges of
// every object rectangle in that GOP; row boundaries are computed the same
// way from y-edges. An empty object set for a GOP yields the whole frame
// as a single tile.
func NewFineGrained(gopLength uint32, firstGOP, lastGOP uint32, frameWidth, frameHeight uint32, objects GOPObjects) (*PerGOPProvider, error) {
	return buildPerGOP(gopLength, firstGOP, lastGOP, frameWidth, frameHeight, objects, false)
}

// NewGrouped is identical to NewFineGrained except it first runs
// rect.Merger over each GOP's object rectangles, producing fewer, larger
// tiles that still cover every object: fewer tiles read per query, at the
// cost of more pixels decoded per tile.
func NewGrouped(gopLength uint32, firstGOP, lastGOP uint32, frameWidth, frameHeight uint32, objects GOPObjects) (*PerGOPProvider, error) {
	return buildPerGOP(gopLength, firstGOP, lastGOP, frameWidth, frameHeight, objects, true)
}

func buildPerGOP(gopLength uint32, firstGOP, lastGOP uint32, frameWidth, frameHeight uint32, objects GOPObjects, grouped bool) (*PerGOPProvider, error) {
	if gopLength == 0 {
		return nil, fmt.Errorf("layout: gopLength must be > 0")
	}
	layouts := make(map[uint32]TileLayout, lastGOP-firstGOP+1)
	for gop := firstGOP; gop <= lastGOP; gop++ {
		rects := objects(gop)
		if grouped && len(rects) > 0 {
			rects = rect.NewMerger(rects).Rectangles()
		}
		l, err := layoutFromRectangles(rects, frameWidth, frameHeight)
		if err != nil {
			return nil, fmt.Errorf("layout: building layout for gop %d: %w", gop, err)
		}
		layouts[gop] = l
	}
	return &PerGOPProvider{gopLength: gopLength, layouts: layouts, fallback: EmptyTileLayout}, nil
}

// layoutFromRectangles derives column/row boundaries from the distinct,
// codec-aligned edges of rects, clipped to the frame. An empty rects list
// produces a single whole-frame tile.
func layoutFromRectangles(rects []rect.Rectangle, frameWidth, frameHeight uint32) (TileLayout, error) {
	colEdges := boundaries(rects, frameWidth, func(r rect.Rectangle) (uint32, uint32) { return r.X, r.Right() })
	rowEdges := boundaries(rects, frameHeight, func(r rect.Rectangle) (uint32, uint32) { return r.Y, r.Bottom() })

	widths := make([]uint32, len(colEdges)-1)
	for i := range widths {
		widths[i] = colEdges[i+1] - colEdges[i]
	}
	heights := make([]uint32, len(rowEdges)-1)
	for i := range heights {
		heights[i] = rowEdges[i+1] - rowEdges[i]
	}
	return NewExplicit(widths, heights)
}

// boundaries collects the codec-aligned edges of rects along one axis
// (via extract), clips them to [0, total], adds the frame boundaries
// themselves, deduplicates edges that round to the same aligned value, and
// returns the sorted result. The result always has at least two entries
// (0 and total), so it always describes at least one tile.
func boundaries(rects []rect.Rectangle, total uint32, extract func(rect.Rectangle) (uint32, uint32)) []uint32 {
	edges := make([]uint32, 0, 2*len(rects)+2)
	edges = append(edges, 0, total)
	for _, r := range rects {
		start, end := extract(r)
		edges = append(edges, alignClip(start, total), alignClip(end, total))
	}
	slices.Sort(edges)
	edges = slices.Compact(edges)
	return edges
}

// alignClip rounds v down to the codec-alignment multiple and clips it to
// [0, total].
func alignClip(v, total uint32) uint32 {
	aligned := (v / CodecAlignment) * CodecAlignment
	if aligned > total {
		return total
	}
	return aligned
}
