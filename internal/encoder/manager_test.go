package encoder

import (
	"context"
	"testing"

	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/video"
)

func TestManager_CreateEncodeDrain(t *testing.T) {
	m := NewManager(video.NewFakeSessionFactory())
	if err := m.CreateEncoderWithConfiguration(0, 320, 240); err != nil {
		t.Fatalf("CreateEncoderWithConfiguration: %v", err)
	}

	if err := m.EncodeFrameForIdentifier(context.Background(), 0, nil, 10, 20, true); err != nil {
		t.Fatalf("EncodeFrameForIdentifier: %v", err)
	}

	got, err := m.GetEncodedFramesForIdentifier(0)
	if err != nil {
		t.Fatalf("GetEncodedFramesForIdentifier: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("GetEncodedFramesForIdentifier returned no bytes after an Encode")
	}
}

func TestManager_ResetDestroysSessions(t *testing.T) {
	m := NewManager(video.NewFakeSessionFactory())
	if err := m.CreateEncoderWithConfiguration(0, 100, 100); err != nil {
		t.Fatalf("CreateEncoderWithConfiguration: %v", err)
	}
	if err := m.CreateEncoderWithConfiguration(1, 100, 100); err != nil {
		t.Fatalf("CreateEncoderWithConfiguration: %v", err)
	}
	if _, err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(m.Tiles()) != 0 {
		t.Fatalf("Tiles() after Reset = %v, want empty", m.Tiles())
	}

	// Encoding against a destroyed session must fail, not silently succeed.
	if err := m.EncodeFrameForIdentifier(context.Background(), 0, nil, 0, 0, false); err == nil {
		t.Fatal("EncodeFrameForIdentifier succeeded after Reset, want error")
	}
}

func TestManager_UnknownTileIsError(t *testing.T) {
	m := NewManager(video.NewFakeSessionFactory())
	if _, err := m.GetEncodedFramesForIdentifier(layout.TileIndex(5)); err == nil {
		t.Fatal("GetEncodedFramesForIdentifier on unknown tile succeeded, want error")
	}
}
