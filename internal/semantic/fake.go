package semantic

import "context"

// FakeIndexClient is an in-memory IndexClient backed by a fixed box list,
// standing in for the external semantic index in tests (this package's
// and selection's).
type FakeIndexClient struct {
	Boxes []ObjectBox
}

// RectanglesForFrame returns every box recorded for frame, ignoring
// entryID (the fake serves a single entry).
func (c *FakeIndexClient) RectanglesForFrame(ctx context.Context, entryID string, frame uint32) ([]ObjectBox, error) {
	var out []ObjectBox
	for _, b := range c.Boxes {
		if b.Frame == frame {
			out = append(out, b)
		}
	}
	return out, nil
}

// FramesMatching returns every frame in [first, last] carrying a box
// whose label equals predicate.Label.
func (c *FakeIndexClient) FramesMatching(ctx context.Context, entryID string, predicate Predicate, first, last uint32) ([]uint32, error) {
	seen := make(map[uint32]bool)
	var out []uint32
	for _, b := range c.Boxes {
		if b.Label != predicate.Label || b.Frame < first || b.Frame > last {
			continue
		}
		if !seen[b.Frame] {
			seen[b.Frame] = true
			out = append(out, b.Frame)
		}
	}
	return out, nil
}
