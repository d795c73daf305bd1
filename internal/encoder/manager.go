// Package encoder implements TileEncoderManager (§4.E): a pool of
// per-tile encoder sessions, reconfigured whenever the driving layout
// changes and torn down with guaranteed release on every exit path.
package encoder

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/tasmerr"
	"github.com/faromero/tasm/internal/video"
)

// Manager owns one EncoderSession per tile index for the layout currently
// being encoded. Sessions persist across frames sharing that layout and
// must be destroyed (via Reset) before a new layout's sessions are
// created.
type Manager struct {
	newSession video.SessionFactory

	mu       sync.Mutex
	sessions map[layout.TileIndex]video.EncoderSession
}

// NewManager builds a Manager that creates sessions via newSession (the
// seam where a real NVENC-backed factory, or video.NewFakeSessionFactory
// in tests, is plugged in).
func NewManager(newSession video.SessionFactory) *Manager {
	return &Manager{
		newSession: newSession,
		sessions:   make(map[layout.TileIndex]video.EncoderSession),
	}
}

// CreateEncoderWithConfiguration initializes a session for tileIndex at
// the given crop dimensions. Returns tasmerr.EncoderUnavailable if session
// initialization fails.
func (m *Manager) CreateEncoderWithConfiguration(tileIndex layout.TileIndex, width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.newSession()
	if err := session.Create(width, height); err != nil {
		return fmt.Errorf("encoder: creating session for tile %d: %w: %v", tileIndex, tasmerr.EncoderUnavailable, err)
	}
	m.sessions[tileIndex] = session
	return nil
}

// EncodeFrameForIdentifier submits a crop of pixels to tileIndex's
// session.
func (m *Manager) EncodeFrameForIdentifier(ctx context.Context, tileIndex layout.TileIndex, pixels *image.RGBA, top, left int, forceKeyframe bool) error {
	m.mu.Lock()
	session, ok := m.sessions[tileIndex]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("encoder: no session for tile %d", tileIndex)
	}
	return session.Encode(ctx, pixels, top, left, forceKeyframe)
}

// GetEncodedFramesForIdentifier drains already-produced bytes for
// tileIndex without blocking.
func (m *Manager) GetEncodedFramesForIdentifier(tileIndex layout.TileIndex) ([]byte, error) {
	m.mu.Lock()
	session, ok := m.sessions[tileIndex]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("encoder: no session for tile %d", tileIndex)
	}
	return session.Drain()
}

// FlushEncoderForIdentifier flushes pending NALs for tileIndex and returns
// all remaining bytes.
func (m *Manager) FlushEncoderForIdentifier(tileIndex layout.TileIndex) ([]byte, error) {
	m.mu.Lock()
	session, ok := m.sessions[tileIndex]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("encoder: no session for tile %d", tileIndex)
	}
	return session.Flush()
}

// Tiles returns the tile indices with a live session, in ascending order.
func (m *Manager) Tiles() []layout.TileIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	tiles := make([]layout.TileIndex, 0, len(m.sessions))
	for t := range m.sessions {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i] < tiles[j] })
	return tiles
}

// Reset flushes and destroys every current session, releasing all
// resources. Called on every layout boundary and at end of stream; safe
// to call on an already-empty Manager.
func (m *Manager) Reset() (map[layout.TileIndex][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := make(map[layout.TileIndex][]byte, len(m.sessions))
	var firstErr error
	for tile, session := range m.sessions {
		b, err := session.Flush()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("encoder: flushing tile %d: %w", tile, err)
		}
		remaining[tile] = b
		if err := session.Destroy(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("encoder: destroying tile %d: %w", tile, err)
		}
	}
	m.sessions = make(map[layout.TileIndex]video.EncoderSession)
	return remaining, firstErr
}
