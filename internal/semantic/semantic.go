// Package semantic implements SemanticDataManager (§4.H): a caching
// adapter over the external object index, translating object boxes into
// rect.Rectangle and exposing the ordered/set frame views the layout
// providers and the selection pipeline need.
package semantic

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/rect"
	"github.com/faromero/tasm/internal/tasmerr"
)

// ObjectBox is one labeled detection box supplied by the external index.
type ObjectBox struct {
	Frame  uint32
	Label  string
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// Rectangle converts the box to a rect.Rectangle, normalizing it and
// tagging it with id (the caller picks an id scheme; the selection
// pipeline uses a per-query running counter).
func (b ObjectBox) Rectangle(id rect.ID) rect.Rectangle {
	return rect.New(id, b.X, b.Y, b.Width, b.Height)
}

// Predicate is a metadata selection over object boxes. Label must be
// non-empty; an empty predicate is rejected before any work starts
// (tasmerr.InvalidPredicate), matching the original's "reject before work
// starts" recovery for malformed metadata selections (§7).
type Predicate struct {
	Label string
}

// Validate rejects a malformed predicate.
func (p Predicate) Validate() error {
	if p.Label == "" {
		return fmt.Errorf("semantic: predicate has empty label: %w", tasmerr.InvalidPredicate)
	}
	return nil
}

// IndexClient is the external semantic index contract (§6). It is
// consumed, never implemented beyond FakeIndexClient, matching the
// teacher's pattern of defining small interfaces consumed by the pipeline
// without shipping a production backend in the core package.
type IndexClient interface {
	RectanglesForFrame(ctx context.Context, entryID string, frame uint32) ([]ObjectBox, error)
	FramesMatching(ctx context.Context, entryID string, predicate Predicate, first, last uint32) ([]uint32, error)
}

type cacheKey struct {
	metadataIdentifier string
	predicate          Predicate
	first, last        uint32
}

// Manager wraps an IndexClient with a per-(metadataIdentifier, predicate)
// result cache, per §4.H.
type Manager struct {
	client IndexClient

	mu    sync.Mutex
	cache map[cacheKey][]uint32
}

// NewManager builds a Manager over client.
func NewManager(client IndexClient) *Manager {
	return &Manager{client: client, cache: make(map[cacheKey][]uint32)}
}

// RectanglesForFrame returns the object boxes on frame, as rectangles
// numbered by a per-call running id (stable within the returned slice,
// not across calls).
func (m *Manager) RectanglesForFrame(ctx context.Context, entryID string, frame uint32) ([]rect.Rectangle, error) {
	boxes, err := m.client.RectanglesForFrame(ctx, entryID, frame)
	if err != nil {
		return nil, fmt.Errorf("semantic: rectangles for frame %d: %w", frame, err)
	}
	rects := make([]rect.Rectangle, len(boxes))
	for i, b := range boxes {
		rects[i] = b.Rectangle(rect.ID(i))
	}
	return rects, nil
}

// OrderedFrames returns, ascending and deduplicated, the frames in
// [first, last] whose predicate evaluation is non-empty. Results are
// cached per (metadataIdentifier, predicate, first, last).
func (m *Manager) OrderedFrames(ctx context.Context, metadataIdentifier string, predicate Predicate, first, last uint32) ([]uint32, error) {
	if err := predicate.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey{metadataIdentifier: metadataIdentifier, predicate: predicate, first: first, last: last}
	m.mu.Lock()
	if cached, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	frames, err := m.client.FramesMatching(ctx, metadataIdentifier, predicate, first, last)
	if err != nil {
		return nil, fmt.Errorf("semantic: frames matching: %w", err)
	}
	ordered := append([]uint32(nil), frames...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	ordered = dedupe(ordered)

	m.mu.Lock()
	m.cache[key] = ordered
	m.mu.Unlock()
	return ordered, nil
}

// FramesForMetadata returns OrderedFrames as a set.
func (m *Manager) FramesForMetadata(ctx context.Context, metadataIdentifier string, predicate Predicate, first, last uint32) (map[uint32]struct{}, error) {
	ordered, err := m.OrderedFrames(ctx, metadataIdentifier, predicate, first, last)
	if err != nil {
		return nil, err
	}
	set := make(map[uint32]struct{}, len(ordered))
	for _, f := range ordered {
		set[f] = struct{}{}
	}
	return set, nil
}

func dedupe(sorted []uint32) []uint32 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// PrefetchGOPObjects builds a layout.GOPObjects closure covering GOPs
// [firstGOP, lastGOP] by eagerly fetching every frame's rectangles, so the
// closure itself never performs I/O or can fail. This is the adapter
// FineGrained/Grouped layout providers need (§4.C), since
// layout.GOPObjects has no error return.
func (m *Manager) PrefetchGOPObjects(ctx context.Context, entryID string, gopLength uint32, firstGOP, lastGOP uint32) (layout.GOPObjects, error) {
	perGOP := make(map[uint32][]rect.Rectangle, lastGOP-firstGOP+1)
	var nextID rect.ID
	for gop := firstGOP; gop <= lastGOP; gop++ {
		first := gop * gopLength
		last := first + gopLength - 1
		var rects []rect.Rectangle
		for f := first; f <= last; f++ {
			boxes, err := m.client.RectanglesForFrame(ctx, entryID, f)
			if err != nil {
				return nil, fmt.Errorf("semantic: rectangles for frame %d: %w", f, err)
			}
			for _, b := range boxes {
				rects = append(rects, b.Rectangle(nextID))
				nextID++
			}
		}
		perGOP[gop] = rects
	}
	return func(gop uint32) []rect.Rectangle { return perGOP[gop] }, nil
}
