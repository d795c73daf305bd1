package operator

import (
	"context"
	"testing"

	"github.com/faromero/tasm/internal/catalog"
	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/video"
)

func newTestEntry(t *testing.T) *catalog.Entry {
	t.Helper()
	return &catalog.Entry{Name: "clip", MetadataIdentifier: "clip-meta", Path: t.TempDir()}
}

func frames(n int) []video.Frame {
	out := make([]video.Frame, n)
	for i := range out {
		out[i] = video.Frame{Number: video.FrameNumber(i), Width: 640, Height: 480}
	}
	return out
}

func TestOperator_SingleLayoutWindowCommitsOnFinish(t *testing.T) {
	entry := newTestEntry(t)
	l, err := layout.NewExplicit([]uint32{640}, []uint32{480})
	if err != nil {
		t.Fatalf("NewExplicit: %v", err)
	}
	provider := layout.NewSingleProvider(l)

	op := New(Config{Entry: entry, Provider: provider, NewSession: video.NewFakeSessionFactory(), Ext: ".h264"})
	ctx := context.Background()
	for _, f := range frames(30) {
		if err := op.ProcessFrame(ctx, f); err != nil {
			t.Fatalf("ProcessFrame(%d): %v", f.Number, err)
		}
	}
	if err := op.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	cur, err := entry.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if cur != 1 {
		t.Fatalf("CurrentVersion() = %d, want 1 (one committed window)", cur)
	}

	lp, err := catalog.NewLocationProvider(entry)
	if err != nil {
		t.Fatalf("NewLocationProvider: %v", err)
	}
	got, err := lp.LayoutForFrame(15)
	if err != nil {
		t.Fatalf("LayoutForFrame(15): %v", err)
	}
	if !got.Equal(l) {
		t.Fatalf("LayoutForFrame(15) = %+v, want %+v", got, l)
	}
}

func TestOperator_LayoutChangeCommitsAndReopensWindow(t *testing.T) {
	entry := newTestEntry(t)
	l1, _ := layout.NewExplicit([]uint32{320, 320}, []uint32{480})
	l2, _ := layout.NewExplicit([]uint32{160, 160, 160, 160}, []uint32{480})

	conglomerate, err := layout.NewConglomeration(30, map[uint32]layout.TileLayout{0: l1, 1: l2})
	if err != nil {
		t.Fatalf("NewConglomeration: %v", err)
	}

	op := New(Config{Entry: entry, Provider: conglomerate, NewSession: video.NewFakeSessionFactory(), Ext: ".h264"})
	ctx := context.Background()

	// Frames 0-29 use l1 (GOP 0); frame 30 crosses into GOP 1's l2, forcing
	// a boundary even though frame numbers are contiguous.
	for _, f := range frames(31) {
		if err := op.ProcessFrame(ctx, f); err != nil {
			t.Fatalf("ProcessFrame(%d): %v", f.Number, err)
		}
	}
	if err := op.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	cur, err := entry.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if cur != 2 {
		t.Fatalf("CurrentVersion() = %d, want 2 (layout change forces a second commit)", cur)
	}

	lp, err := catalog.NewLocationProvider(entry)
	if err != nil {
		t.Fatalf("NewLocationProvider: %v", err)
	}
	got1, err := lp.LayoutForFrame(10)
	if err != nil {
		t.Fatalf("LayoutForFrame(10): %v", err)
	}
	if got1.NumberOfTiles() != 2 {
		t.Errorf("LayoutForFrame(10) has %d tiles, want 2", got1.NumberOfTiles())
	}
	got2, err := lp.LayoutForFrame(30)
	if err != nil {
		t.Fatalf("LayoutForFrame(30): %v", err)
	}
	if got2.NumberOfTiles() != 4 {
		t.Errorf("LayoutForFrame(30) has %d tiles, want 4", got2.NumberOfTiles())
	}
}

func TestOperator_FrameGapForcesCommitEvenWithSameLayout(t *testing.T) {
	entry := newTestEntry(t)
	l, _ := layout.NewExplicit([]uint32{640}, []uint32{480})
	provider := layout.NewSingleProvider(l)

	op := New(Config{Entry: entry, Provider: provider, NewSession: video.NewFakeSessionFactory(), Ext: ".h264"})
	ctx := context.Background()

	if err := op.ProcessFrame(ctx, video.Frame{Number: 0}); err != nil {
		t.Fatalf("ProcessFrame(0): %v", err)
	}
	if err := op.ProcessFrame(ctx, video.Frame{Number: 1}); err != nil {
		t.Fatalf("ProcessFrame(1): %v", err)
	}
	// A gap: frame 5 after frame 1, same layout. Must still force a boundary.
	if err := op.ProcessFrame(ctx, video.Frame{Number: 5}); err != nil {
		t.Fatalf("ProcessFrame(5): %v", err)
	}
	if err := op.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	cur, err := entry.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if cur != 2 {
		t.Fatalf("CurrentVersion() = %d, want 2 (frame gap forces its own window)", cur)
	}
}

func TestOperator_ProcessFrameAfterFinishErrors(t *testing.T) {
	entry := newTestEntry(t)
	l, _ := layout.NewExplicit([]uint32{640}, []uint32{480})
	op := New(Config{Entry: entry, Provider: layout.NewSingleProvider(l), NewSession: video.NewFakeSessionFactory(), Ext: ".h264"})
	ctx := context.Background()

	if err := op.ProcessFrame(ctx, video.Frame{Number: 0}); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if err := op.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := op.ProcessFrame(ctx, video.Frame{Number: 1}); err == nil {
		t.Fatal("ProcessFrame after Finish succeeded, want error")
	}
}

func TestIngestUniform_ProducesUniformLayoutVersion(t *testing.T) {
	entry := newTestEntry(t)
	decoder := &video.FakeDecoder{Frames: frames(10)}

	if err := IngestUniform(context.Background(), entry, video.NewFakeSessionFactory(), ".h264", 2, 2, 640, 480, decoder); err != nil {
		t.Fatalf("IngestUniform: %v", err)
	}

	cur, err := entry.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if cur != 1 {
		t.Fatalf("CurrentVersion() = %d, want 1", cur)
	}

	lp, err := catalog.NewLocationProvider(entry)
	if err != nil {
		t.Fatalf("NewLocationProvider: %v", err)
	}
	got, err := lp.LayoutForFrame(5)
	if err != nil {
		t.Fatalf("LayoutForFrame(5): %v", err)
	}
	if got.NumberOfTiles() != 4 {
		t.Fatalf("LayoutForFrame(5) has %d tiles, want 4", got.NumberOfTiles())
	}
}

func TestIngest_ProducesSingleTileVersion(t *testing.T) {
	entry := newTestEntry(t)
	decoder := &video.FakeDecoder{Frames: frames(5)}

	if err := Ingest(context.Background(), entry, video.NewFakeSessionFactory(), ".h264", 640, 480, decoder); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	lp, err := catalog.NewLocationProvider(entry)
	if err != nil {
		t.Fatalf("NewLocationProvider: %v", err)
	}
	got, err := lp.LayoutForFrame(0)
	if err != nil {
		t.Fatalf("LayoutForFrame(0): %v", err)
	}
	if got.NumberOfTiles() != 1 {
		t.Fatalf("LayoutForFrame(0) has %d tiles, want 1", got.NumberOfTiles())
	}
}
