// Package regret implements RegretAccumulator (§4.J): per-GOP,
// per-candidate-layout regret bookkeeping that drives the decision to
// re-tile and the choice of target layout.
package regret

import (
	"fmt"
	"sort"
	"sync"

	"github.com/faromero/tasm/internal/cost"
	"github.com/faromero/tasm/internal/layout"
)

// Accumulator holds, for each GOP, a map<layoutID, regret pixels> plus a
// threshold fraction of the GOP's total pixel count. The set of candidate
// layouts is caller-supplied; the accumulator makes no assumption about
// how they were clustered (§9 Design Notes, "Regret candidates").
type Accumulator struct {
	gopLength         uint32
	gopPixelCount     uint64
	thresholdFraction float64
	layouts           map[string]layout.TileLayout

	mu     sync.Mutex
	ledger map[uint32]map[string]uint64
}

// New builds an Accumulator. gopPixelCount is the pixel count of one full
// GOP's worth of frames (frameWidth * frameHeight * gopLength) and is the
// basis for the threshold comparison in ShouldRetileGOP.
func New(gopLength uint32, gopPixelCount uint64, thresholdFraction float64, layouts map[string]layout.TileLayout) *Accumulator {
	cp := make(map[string]layout.TileLayout, len(layouts))
	for k, v := range layouts {
		cp[k] = v
	}
	return &Accumulator{
		gopLength:         gopLength,
		gopPixelCount:     gopPixelCount,
		thresholdFraction: thresholdFraction,
		layouts:           cp,
		ledger:            make(map[uint32]map[string]uint64),
	}
}

// LayoutIdentifiers enumerates candidate layout ids, sorted lexicographically.
func (a *Accumulator) LayoutIdentifiers() []string {
	ids := make([]string, 0, len(a.layouts))
	for id := range a.layouts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Accumulator) estimatorFor(id string) (*cost.Estimator, error) {
	l, ok := a.layouts[id]
	if !ok {
		return nil, fmt.Errorf("regret: unknown layout id %q", id)
	}
	return cost.NewEstimator(layout.NewSingleProvider(l), a.gopLength), nil
}

// AddRegretForQuery runs w under every candidate layout, and for each GOP
// the query touches, adds max(0, cost(current) - cost(candidate)) to that
// candidate's ledger entry for that GOP, per candidate (§4.J).
func (a *Accumulator) AddRegretForQuery(w cost.Workload, currentID string) error {
	currentEstimator, err := a.estimatorFor(currentID)
	if err != nil {
		return err
	}
	currentPerGOP := perGOPCost(currentEstimator, w)

	a.mu.Lock()
	defer a.mu.Unlock()

	for candidateID := range a.layouts {
		if candidateID == currentID {
			continue
		}
		candidateEstimator, err := a.estimatorFor(candidateID)
		if err != nil {
			return err
		}
		candidatePerGOP := perGOPCost(candidateEstimator, w)

		for gop, curCost := range currentPerGOP {
			candCost := candidatePerGOP[gop]
			diff := int64(curCost.NumPixels) - int64(candCost.NumPixels)
			if diff <= 0 {
				continue
			}
			if a.ledger[gop] == nil {
				a.ledger[gop] = make(map[string]uint64)
			}
			a.ledger[gop][candidateID] += uint64(diff)
		}
	}
	return nil
}

func perGOPCost(e *cost.Estimator, w cost.Workload) map[uint32]cost.CostElements {
	out := make(map[uint32]cost.CostElements)
	for _, sel := range w.Selections {
		for gop, c := range e.EstimatePerGOP(sel) {
			out[gop] = out[gop].Add(c)
		}
	}
	return out
}

// ShouldRetileGOP reports whether any candidate's ledger entry for gop
// exceeds thresholdFraction * gopPixelCount, and if so, which one.
// Ties are broken by larger regret, then lexicographically smaller id.
func (a *Accumulator) ShouldRetileGOP(gop uint32) (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	threshold := a.thresholdFraction * float64(a.gopPixelCount)
	var bestID string
	var bestRegret uint64
	found := false
	for id, regret := range a.ledger[gop] {
		if float64(regret) <= threshold {
			continue
		}
		if !found || regret > bestRegret || (regret == bestRegret && id < bestID) {
			found, bestID, bestRegret = true, id, regret
		}
	}
	return found, bestID
}

// ResetRegretForGOP zeroes all counters for gop. Called immediately after
// a re-tile targeting that GOP commits.
func (a *Accumulator) ResetRegretForGOP(gop uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.ledger, gop)
}

// GetNewGOPLayouts returns the layout every GOP whose regret currently
// crosses the threshold should move to. The result is fed directly into
// layout.NewConglomeration for the next TileOperator pass.
func (a *Accumulator) GetNewGOPLayouts() map[uint32]layout.TileLayout {
	a.mu.Lock()
	gops := make([]uint32, 0, len(a.ledger))
	for gop := range a.ledger {
		gops = append(gops, gop)
	}
	a.mu.Unlock()

	out := make(map[uint32]layout.TileLayout)
	for _, gop := range gops {
		if ok, id := a.ShouldRetileGOP(gop); ok {
			out[gop] = a.layouts[id]
		}
	}
	return out
}
