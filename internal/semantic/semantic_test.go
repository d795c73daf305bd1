package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/faromero/tasm/internal/tasmerr"
)

func TestManager_OrderedFramesSortedAndDeduped(t *testing.T) {
	client := &FakeIndexClient{Boxes: []ObjectBox{
		{Frame: 10, Label: "car", X: 0, Y: 0, Width: 10, Height: 10},
		{Frame: 5, Label: "car", X: 0, Y: 0, Width: 10, Height: 10},
		{Frame: 5, Label: "car", X: 20, Y: 0, Width: 10, Height: 10},
	}}
	m := NewManager(client)

	got, err := m.OrderedFrames(context.Background(), "clip-meta", Predicate{Label: "car"}, 0, 100)
	if err != nil {
		t.Fatalf("OrderedFrames: %v", err)
	}
	want := []uint32{5, 10}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("OrderedFrames = %v, want %v", got, want)
	}
}

func TestManager_OrderedFramesRejectsEmptyPredicate(t *testing.T) {
	m := NewManager(&FakeIndexClient{})
	_, err := m.OrderedFrames(context.Background(), "clip-meta", Predicate{}, 0, 10)
	if !errors.Is(err, tasmerr.InvalidPredicate) {
		t.Fatalf("OrderedFrames with empty predicate error = %v, want InvalidPredicate", err)
	}
}

func TestManager_RectanglesForFrame(t *testing.T) {
	client := &FakeIndexClient{Boxes: []ObjectBox{
		{Frame: 3, Label: "person", X: 401, Y: 399, Width: 99, Height: 101},
	}}
	m := NewManager(client)

	rects, err := m.RectanglesForFrame(context.Background(), "clip-meta", 3)
	if err != nil {
		t.Fatalf("RectanglesForFrame: %v", err)
	}
	if len(rects) != 1 {
		t.Fatalf("RectanglesForFrame returned %d rects, want 1", len(rects))
	}
	// Odd inputs normalize per S2.
	if rects[0].X != 400 || rects[0].Y != 398 || rects[0].Width != 100 || rects[0].Height != 102 {
		t.Fatalf("RectanglesForFrame()[0] = %+v, want normalized (400,398,100,102)", rects[0])
	}
}

func TestManager_PrefetchGOPObjects(t *testing.T) {
	client := &FakeIndexClient{Boxes: []ObjectBox{
		{Frame: 5, Label: "car", X: 0, Y: 0, Width: 10, Height: 10},
		{Frame: 35, Label: "car", X: 100, Y: 100, Width: 10, Height: 10},
	}}
	m := NewManager(client)

	objects, err := m.PrefetchGOPObjects(context.Background(), "clip", 30, 0, 1)
	if err != nil {
		t.Fatalf("PrefetchGOPObjects: %v", err)
	}
	if len(objects(0)) != 1 {
		t.Fatalf("objects(0) = %v, want 1 rectangle", objects(0))
	}
	if len(objects(1)) != 1 {
		t.Fatalf("objects(1) = %v, want 1 rectangle", objects(1))
	}
}
