package regret

import (
	"testing"

	"github.com/faromero/tasm/internal/cost"
	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/rect"
)

const gopLength = 30

// gopPixelCount mirrors a 1920x1080 GOP of 30 frames: 62,208,000 pixels.
const gopPixelCount = uint64(1920) * 1080 * gopLength

func mustSingle(t *testing.T, columns, rows int, w, h uint32) layout.TileLayout {
	t.Helper()
	l, err := layout.NewUniform(columns, rows, w, h)
	if err != nil {
		t.Fatalf("NewUniform: %v", err)
	}
	return l
}

// TestThreshold_AccumulatesIndependentlyThenTriggers exercises §8 property
// 9 (regret correctness): repeated queries whose cost is cheaper under a
// candidate layout accumulate regret against that candidate; once one
// candidate's ledger for a GOP exceeds thresholdFraction * gopPixelCount,
// ShouldRetileGOP reports it.
func TestThreshold_AccumulatesIndependentlyThenTriggers(t *testing.T) {
	current := mustSingle(t, 1, 1, 1920, 1080)
	candidateA := mustSingle(t, 3, 3, 1920, 1080)
	candidateB := mustSingle(t, 6, 6, 1920, 1080)

	acc := New(gopLength, gopPixelCount, 0.65, map[string]layout.TileLayout{
		"current": current,
		"A":       candidateA,
		"B":       candidateB,
	})

	// A query whose box sits in one small region: under the finer-grained
	// candidates, only the touched tile(s) must be decoded, so their cost
	// is much lower than under the single full-frame "current" layout.
	query := func(box rect.Rectangle, frame uint32) cost.Workload {
		return cost.Workload{Selections: []cost.Selection{{
			Frames:     []cost.FrameTouch{{Frame: frame, Rectangles: []rect.Rectangle{box}}},
			Multiplier: 1,
		}}}
	}

	box := rect.New(1, 400, 400, 100, 100)

	// Five queries' worth of regret against "current", landing on GOP 0
	// (frames < 30). Each individually contributes well under threshold;
	// accumulated together they cross it.
	for i := 0; i < 5; i++ {
		if err := acc.AddRegretForQuery(query(box, 5), "current"); err != nil {
			t.Fatalf("AddRegretForQuery: %v", err)
		}
	}

	ok, _ := acc.ShouldRetileGOP(0)
	if !ok {
		t.Fatalf("ShouldRetileGOP(0) = false after repeated cheaper-elsewhere queries, want true")
	}

	triggered, id := acc.ShouldRetileGOP(0)
	if !triggered {
		t.Fatal("expected a retile decision")
	}
	if id != "A" && id != "B" {
		t.Fatalf("ShouldRetileGOP(0) candidate = %q, want A or B", id)
	}
}

func TestShouldRetileGOP_BelowThresholdDoesNotTrigger(t *testing.T) {
	current := mustSingle(t, 1, 1, 1920, 1080)
	candidate := mustSingle(t, 3, 3, 1920, 1080)

	acc := New(gopLength, gopPixelCount, 0.65, map[string]layout.TileLayout{
		"current": current,
		"A":       candidate,
	})

	box := rect.New(1, 400, 400, 100, 100)
	workload := cost.Workload{Selections: []cost.Selection{{
		Frames:     []cost.FrameTouch{{Frame: 0, Rectangles: []rect.Rectangle{box}}},
		Multiplier: 1,
	}}}

	if err := acc.AddRegretForQuery(workload, "current"); err != nil {
		t.Fatalf("AddRegretForQuery: %v", err)
	}
	if ok, _ := acc.ShouldRetileGOP(0); ok {
		t.Fatal("a single small query triggered a retile, want it to stay below threshold")
	}
}

func TestResetRegretForGOP_ClearsLedger(t *testing.T) {
	current := mustSingle(t, 1, 1, 1920, 1080)
	candidate := mustSingle(t, 3, 3, 1920, 1080)
	acc := New(gopLength, gopPixelCount, 0.0, map[string]layout.TileLayout{
		"current": current,
		"A":       candidate,
	})

	box := rect.New(1, 400, 400, 100, 100)
	workload := cost.Workload{Selections: []cost.Selection{{
		Frames:     []cost.FrameTouch{{Frame: 0, Rectangles: []rect.Rectangle{box}}},
		Multiplier: 1,
	}}}
	if err := acc.AddRegretForQuery(workload, "current"); err != nil {
		t.Fatalf("AddRegretForQuery: %v", err)
	}
	if ok, _ := acc.ShouldRetileGOP(0); !ok {
		t.Fatal("expected threshold 0.0 to trigger immediately")
	}

	acc.ResetRegretForGOP(0)
	if ok, _ := acc.ShouldRetileGOP(0); ok {
		t.Fatal("ShouldRetileGOP(0) still true after ResetRegretForGOP")
	}
}

func TestGetNewGOPLayouts_ReturnsOnlyTriggeredGOPs(t *testing.T) {
	current := mustSingle(t, 1, 1, 1920, 1080)
	candidate := mustSingle(t, 3, 3, 1920, 1080)
	acc := New(gopLength, gopPixelCount, 0.0, map[string]layout.TileLayout{
		"current": current,
		"A":       candidate,
	})

	box := rect.New(1, 400, 400, 100, 100)
	workload := cost.Workload{Selections: []cost.Selection{{
		Frames:     []cost.FrameTouch{{Frame: 0, Rectangles: []rect.Rectangle{box}}},
		Multiplier: 1,
	}}}
	if err := acc.AddRegretForQuery(workload, "current"); err != nil {
		t.Fatalf("AddRegretForQuery: %v", err)
	}

	got := acc.GetNewGOPLayouts()
	if len(got) != 1 {
		t.Fatalf("GetNewGOPLayouts returned %d entries, want 1", len(got))
	}
	l, ok := got[0]
	if !ok {
		t.Fatal("GetNewGOPLayouts missing GOP 0")
	}
	if !l.Equal(candidate) {
		t.Fatalf("GetNewGOPLayouts()[0] = %+v, want candidate layout", l)
	}
}
