package cost

import (
	"testing"

	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/rect"
)

func uniformProvider(t *testing.T) layout.Provider {
	t.Helper()
	l, err := layout.NewUniform(3, 3, 900, 900)
	if err != nil {
		t.Fatalf("NewUniform: %v", err)
	}
	return layout.NewSingleProvider(l)
}

func TestEstimate_SingleTileTouched(t *testing.T) {
	e := NewEstimator(uniformProvider(t), 30)
	// Center tile of a 3x3 over 900x900 is (300,300,300,300); a box at
	// (400,400,100,100) lands entirely inside it.
	sel := Selection{
		Frames: []FrameTouch{
			{Frame: 10, Rectangles: []rect.Rectangle{rect.New(1, 400, 400, 100, 100)}},
		},
		Multiplier: 1,
	}
	got := e.Estimate(Workload{Selections: []Selection{sel}})
	// GOP 0, keyframe 0, touched through frame 10: span = 11 frames.
	wantPixels := uint64(300*300) * 11
	if got.NumPixels != wantPixels {
		t.Fatalf("NumPixels = %d, want %d", got.NumPixels, wantPixels)
	}
	if got.NumTiles != 11 {
		t.Fatalf("NumTiles = %d, want 11", got.NumTiles)
	}
}

func TestEstimate_Monotonicity(t *testing.T) {
	e := NewEstimator(uniformProvider(t), 30)
	sel1 := Selection{
		Frames:     []FrameTouch{{Frame: 5, Rectangles: []rect.Rectangle{rect.New(1, 0, 0, 100, 100)}}},
		Multiplier: 1,
	}
	sel2 := Selection{
		Frames:     []FrameTouch{{Frame: 5, Rectangles: []rect.Rectangle{rect.New(2, 800, 800, 50, 50)}}},
		Multiplier: 1,
	}

	base := e.Estimate(Workload{Selections: []Selection{sel1}})
	withSel2 := e.Estimate(Workload{Selections: []Selection{sel1, sel2}})

	if withSel2.NumPixels < base.NumPixels {
		t.Fatalf("adding a selection decreased cost: %d -> %d", base.NumPixels, withSel2.NumPixels)
	}
	if withSel2.NumTiles < base.NumTiles {
		t.Fatalf("adding a selection decreased tile reads: %d -> %d", base.NumTiles, withSel2.NumTiles)
	}
}

func TestEstimate_UntouchedTilesContributeNothing(t *testing.T) {
	e := NewEstimator(uniformProvider(t), 30)
	sel := Selection{Frames: []FrameTouch{{Frame: 0, Rectangles: nil}}, Multiplier: 1}
	got := e.Estimate(Workload{Selections: []Selection{sel}})
	if got.NumPixels != 0 || got.NumTiles != 0 {
		t.Fatalf("cost with no touched tiles = %+v, want zero", got)
	}
}

func TestEstimatePerGOP_SplitsByGOP(t *testing.T) {
	e := NewEstimator(uniformProvider(t), 30)
	sel := Selection{
		Frames: []FrameTouch{
			{Frame: 5, Rectangles: []rect.Rectangle{rect.New(1, 0, 0, 100, 100)}},
			{Frame: 35, Rectangles: []rect.Rectangle{rect.New(1, 0, 0, 100, 100)}},
		},
		Multiplier: 1,
	}
	perGOP := e.EstimatePerGOP(sel)
	if len(perGOP) != 2 {
		t.Fatalf("EstimatePerGOP returned %d GOPs, want 2", len(perGOP))
	}
	if _, ok := perGOP[0]; !ok {
		t.Fatal("missing GOP 0")
	}
	if _, ok := perGOP[1]; !ok {
		t.Fatal("missing GOP 1")
	}
}
