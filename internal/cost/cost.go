// Package cost implements CostEstimator (§4.I): the pixels-decoded and
// tiles-read cost of a workload under a given TileLayoutProvider, using
// the original's per-GOP "decode from keyframe to last touched frame"
// accounting (Design Notes, §12 grounding on WorkloadCostEstimator.cc).
package cost

import (
	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/rect"
)

// DefaultGOPLength is the GOP length assumed when a caller has no
// more specific configuration, carried over from the original's
// Configuration-style named constant (§12) rather than a magic number.
const DefaultGOPLength uint32 = 30

// CostElements is an additive (pixels, tile-reads) pair.
type CostElements struct {
	NumPixels uint64
	NumTiles  uint64
}

// Add returns the element-wise sum of c and o.
func (c CostElements) Add(o CostElements) CostElements {
	return CostElements{NumPixels: c.NumPixels + o.NumPixels, NumTiles: c.NumTiles + o.NumTiles}
}

// FrameTouch is one frame's predicate-matched object rectangles, the unit
// a Selection is built from.
type FrameTouch struct {
	Frame      uint32
	Rectangles []rect.Rectangle
}

// Selection is one query's touched frames plus a workload multiplier
// (e.g. query frequency).
type Selection struct {
	Frames     []FrameTouch
	Multiplier float64
}

// Workload is a set of selections whose costs add.
type Workload struct {
	Selections []Selection
}

// Estimator estimates cost under one TileLayoutProvider and GOP length.
type Estimator struct {
	provider  layout.Provider
	gopLength uint32
}

// NewEstimator builds an Estimator. gopLength must be > 0.
func NewEstimator(provider layout.Provider, gopLength uint32) *Estimator {
	return &Estimator{provider: provider, gopLength: gopLength}
}

// Estimate returns the total cost of w: the sum of each selection's
// per-GOP cost, scaled by its multiplier. Adding a selection to a
// workload never decreases the result, since every selection contributes
// a non-negative cost (§8 property 8).
func (e *Estimator) Estimate(w Workload) CostElements {
	var total CostElements
	for _, sel := range w.Selections {
		for _, c := range e.perGOP(sel) {
			total = total.Add(c)
		}
	}
	return total
}

// EstimatePerGOP returns sel's cost broken out by GOP index, each scaled
// by sel.Multiplier. Used by regret.Accumulator to compare candidate
// layouts GOP by GOP.
func (e *Estimator) EstimatePerGOP(sel Selection) map[uint32]CostElements {
	return e.perGOP(sel)
}

// perGOP implements §4.I's algorithm: within each GOP, find per-tile the
// maximum frame number the predicate still touches; that tile must be
// decoded from the GOP's keyframe through that frame, contributing
// tile.area * (maxFrame - keyframe + 1) pixels and that many tile-reads.
// Tiles never touched contribute nothing.
func (e *Estimator) perGOP(sel Selection) map[uint32]CostElements {
	type gopState struct {
		layout   layout.TileLayout
		maxFrame map[layout.TileIndex]uint32
	}
	gops := make(map[uint32]*gopState)

	for _, ft := range sel.Frames {
		gop := ft.Frame / e.gopLength
		st, ok := gops[gop]
		if !ok {
			st = &gopState{layout: e.provider.LayoutForFrame(ft.Frame), maxFrame: make(map[layout.TileIndex]uint32)}
			gops[gop] = st
		}
		touched := make(map[layout.TileIndex]bool)
		for _, r := range ft.Rectangles {
			for _, t := range st.layout.TilesForRectangle(r) {
				touched[t] = true
			}
		}
		for t := range touched {
			if cur, ok := st.maxFrame[t]; !ok || ft.Frame > cur {
				st.maxFrame[t] = ft.Frame
			}
		}
	}

	out := make(map[uint32]CostElements, len(gops))
	for gop, st := range gops {
		keyframe := gop * e.gopLength
		var c CostElements
		for t, maxFrame := range st.maxFrame {
			span := uint64(maxFrame-keyframe) + 1
			r := st.layout.RectangleForTile(t)
			c.NumPixels += r.Area() * span
			c.NumTiles += span
		}
		out[gop] = CostElements{
			NumPixels: uint64(float64(c.NumPixels) * sel.Multiplier),
			NumTiles:  uint64(float64(c.NumTiles) * sel.Multiplier),
		}
	}
	return out
}
