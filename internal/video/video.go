// Package video names the external decoder/encoder contracts from spec.md
// §6. The NVENC/NVDEC hardware wrappers and the MP4 container parser are
// out of scope for the core (§1); this package only defines the
// interfaces the core consumes, plus a fake implementation used by tests.
package video

import (
	"context"
	"image"

	"github.com/faromero/tasm/pkg/tasmio"
)

// FrameNumber is a decoded frame's sequence number. NoFrameNumber means
// the decoder did not attach one, in which case the caller (TileOperator)
// falls back to a monotonic counter, per §4.G's tie-break.
type FrameNumber int64

// NoFrameNumber is the sentinel value for "frame carries no number".
const NoFrameNumber FrameNumber = -1

// Frame is one decoded picture handed to the core by the external decoder.
type Frame struct {
	Number FrameNumber
	Pixels *image.RGBA
	Width  int
	Height int
}

// Decoder is the pull-based external decoder contract: Read yields frames
// one at a time, ok=false signals end of stream.
type Decoder interface {
	Read(ctx context.Context) (frame Frame, ok bool, err error)
}

// EncoderSession is one per-tile encoder session contract (§4.E/§6):
// sessions are created against a fixed (width, height), persist across
// frames of the same layout, and are destroyed when the layout changes.
type EncoderSession interface {
	// Create initializes the session for the given crop dimensions.
	Create(width, height int) error
	// Encode submits one cropped frame for encoding at (top, left) in the
	// source frame. forceKeyframe requests an IDR/keyframe.
	Encode(ctx context.Context, pixels *image.RGBA, top, left int, forceKeyframe bool) error
	// Drain returns bytes already produced without blocking.
	Drain() ([]byte, error)
	// Flush flushes any buffered NALs and returns all remaining bytes.
	Flush() ([]byte, error)
	// Destroy releases the session's resources. Safe to call multiple
	// times.
	Destroy() error
}

// SessionFactory creates a new EncoderSession, the seam through which a
// real NVENC-backed implementation (external, §1) or a test fake is
// plugged into TileEncoderManager.
type SessionFactory func() EncoderSession

// AsStage adapts a Decoder's pull contract to the generic tasmio.Stage
// abstraction, so TileOperator and SelectionPipeline drive it through the
// same polymorphic next()-shaped idiom as every other pipeline stage
// (spec.md's Design Notes, "Polymorphic operators"), rather than calling
// Read directly. ctx is fixed for the stage's lifetime, matching how a
// single Run/Execute call already holds one ctx throughout.
func AsStage(ctx context.Context, d Decoder) tasmio.Stage[Frame] {
	return tasmio.FuncStage[Frame](func() (Frame, bool, error) {
		return d.Read(ctx)
	})
}
