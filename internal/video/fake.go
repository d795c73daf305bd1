package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
)

// FakeDecoder replays a fixed slice of frames, used by tests standing in
// for the external NVDEC wrapper.
type FakeDecoder struct {
	Frames []Frame
	pos    int
}

// Read returns the next frame in Frames, or ok=false once exhausted.
func (d *FakeDecoder) Read(ctx context.Context) (Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, false, err
	}
	if d.pos >= len(d.Frames) {
		return Frame{}, false, nil
	}
	f := d.Frames[d.pos]
	d.pos++
	return f, true, nil
}

// FakeSession is an in-memory EncoderSession that records each encoded
// crop as a small deterministic marker rather than real compressed bytes,
// standing in for the external NVENC wrapper in tests.
type FakeSession struct {
	width, height int
	created       bool
	destroyed     bool
	pending       bytes.Buffer
}

// NewFakeSessionFactory returns a SessionFactory producing fresh
// FakeSessions.
func NewFakeSessionFactory() SessionFactory {
	return func() EncoderSession { return &FakeSession{} }
}

func (s *FakeSession) Create(width, height int) error {
	s.width, s.height = width, height
	s.created = true
	return nil
}

func (s *FakeSession) Encode(ctx context.Context, pixels *image.RGBA, top, left int, forceKeyframe bool) error {
	if !s.created {
		return fmt.Errorf("video: Encode called before Create")
	}
	kind := byte('p')
	if forceKeyframe {
		kind = 'k'
	}
	fmt.Fprintf(&s.pending, "%c(%d,%d,%dx%d)", kind, top, left, s.width, s.height)
	return nil
}

func (s *FakeSession) Drain() ([]byte, error) {
	b := append([]byte(nil), s.pending.Bytes()...)
	s.pending.Reset()
	return b, nil
}

func (s *FakeSession) Flush() ([]byte, error) {
	return s.Drain()
}

func (s *FakeSession) Destroy() error {
	s.destroyed = true
	return nil
}
