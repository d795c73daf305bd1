// Package operator implements TileOperator (§4.G): the state machine that
// consumes a decoded frame stream and drives TileEncoderManager (§4.E) and
// CrackingTransaction (§4.F) to produce GOP-aligned, single-layout version
// directories.
package operator

import (
	"context"
	"fmt"

	"github.com/faromero/tasm/internal/catalog"
	"github.com/faromero/tasm/internal/encoder"
	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/tasmlog"
	"github.com/faromero/tasm/internal/video"
)

// State is one of the three states the operator can be in.
type State int

const (
	// Fresh means no current layout has been established yet.
	Fresh State = iota
	// Encoding means frames are being accumulated against a current
	// layout and frame window.
	Encoding
	// Done means end-of-stream has been processed and any buffered
	// window has been drained and committed.
	Done
)

// Operator drives one catalog entry's storage pipeline. It is not safe
// for concurrent use by multiple goroutines; per §5, storage against one
// entry is expected to be single-threaded.
type Operator struct {
	entry    *catalog.Entry
	provider layout.Provider
	mgr      *encoder.Manager
	ext      string
	log      *tasmlog.Logger

	state         State
	currentLayout layout.TileLayout
	firstFrame    uint32
	lastFrame     uint32

	counter int64
}

// Config bundles an Operator's dependencies.
type Config struct {
	Entry      *catalog.Entry
	Provider   layout.Provider
	NewSession video.SessionFactory
	// Ext is the tile file extension committed to the catalog, e.g.
	// ".h264", ".hevc", or ".mp4".
	Ext string
	// Logger receives verbose diagnostics at layout-change/frame-gap
	// boundaries and transaction commits. A nil Logger logs nothing.
	Logger *tasmlog.Logger
}

// New builds an Operator in the Fresh state.
func New(cfg Config) *Operator {
	return &Operator{
		entry:    cfg.Entry,
		provider: cfg.Provider,
		mgr:      encoder.NewManager(cfg.NewSession),
		ext:      cfg.Ext,
		log:      cfg.Logger,
		state:    Fresh,
		counter:  -1,
	}
}

// State returns the operator's current state.
func (op *Operator) State() State { return op.state }

// resolveFrameNumber returns f's own frame number if it carries one,
// otherwise a monotonic counter, per §4.G's tie-break.
func (op *Operator) resolveFrameNumber(f video.Frame) uint32 {
	if f.Number != video.NoFrameNumber {
		return uint32(f.Number)
	}
	op.counter++
	return uint32(op.counter)
}

// ProcessFrame offers one decoded frame to the operator. It may trigger a
// commit of the current window if the layout changes or a frame-number
// gap is detected (§4.G, §9 Design Notes "Layout-change detection":
// structural inequality of the layout OR a gap, either one forces a
// boundary).
func (op *Operator) ProcessFrame(ctx context.Context, f video.Frame) error {
	frameNumber := op.resolveFrameNumber(f)
	l := op.provider.LayoutForFrame(frameNumber)

	switch op.state {
	case Fresh:
		if err := op.openWindow(l, frameNumber); err != nil {
			return err
		}
	case Encoding:
		gap := frameNumber != op.lastFrame+1
		changed := !l.Equal(op.currentLayout)
		if gap || changed {
			op.log.Verbosef("operator: boundary at frame %d (gap=%v changed=%v): committing window [%d,%d]", frameNumber, gap, changed, op.firstFrame, op.lastFrame)
			if err := op.commitWindow(ctx); err != nil {
				return err
			}
			if err := op.openWindow(l, frameNumber); err != nil {
				return err
			}
		}
	case Done:
		return fmt.Errorf("operator: ProcessFrame called after Finish")
	}

	if err := op.encodeInto(ctx, f, frameNumber == op.firstFrame); err != nil {
		return err
	}
	op.lastFrame = frameNumber
	return nil
}

// openWindow creates encoder sessions for every tile of l and starts a
// new [frameNumber, frameNumber] window.
func (op *Operator) openWindow(l layout.TileLayout, frameNumber uint32) error {
	for t := 0; t < l.NumberOfTiles(); t++ {
		r := l.RectangleForTile(layout.TileIndex(t))
		if err := op.mgr.CreateEncoderWithConfiguration(layout.TileIndex(t), int(r.Width), int(r.Height)); err != nil {
			return err
		}
	}
	op.currentLayout = l
	op.firstFrame = frameNumber
	op.lastFrame = frameNumber
	op.state = Encoding
	op.log.Verbosef("operator: window opened at frame %d, layout %dx%d, tiles %v", frameNumber, l.Columns(), l.Rows(), op.mgr.Tiles())
	return nil
}

// encodeInto submits f to every tile of the current layout at its crop
// offset. forceKeyframe is true for the first frame of a window, since a
// freshly (re)configured tile stream must start at a keyframe.
func (op *Operator) encodeInto(ctx context.Context, f video.Frame, forceKeyframe bool) error {
	for t := 0; t < op.currentLayout.NumberOfTiles(); t++ {
		r := op.currentLayout.RectangleForTile(layout.TileIndex(t))
		if err := op.mgr.EncodeFrameForIdentifier(ctx, layout.TileIndex(t), f.Pixels, int(r.Y), int(r.X), forceKeyframe); err != nil {
			return err
		}
	}
	return nil
}

// commitWindow drains and destroys every current session, opens a
// CrackingTransaction for [firstFrame, lastFrame], writes each tile's
// accumulated bytes, and commits. On any failure the transaction is
// rolled back and tasmerr-wrapped errors propagate to the caller.
func (op *Operator) commitWindow(ctx context.Context) error {
	if op.state != Encoding {
		return nil
	}

	remaining, flushErr := op.mgr.Reset()

	tx, err := catalog.Begin(op.entry)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for tile, data := range remaining {
		w, err := tx.Write(tile, op.ext)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return fmt.Errorf("operator: writing tile %d: %w", tile, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("operator: closing tile %d: %w", tile, err)
		}
	}

	if flushErr != nil {
		return flushErr
	}

	if err := tx.Commit(op.currentLayout, catalog.FrameRange{First: op.firstFrame, Last: op.lastFrame}); err != nil {
		return err
	}
	op.log.Verbosef("operator: committed version %d, frames [%d,%d]", tx.Version(), op.firstFrame, op.lastFrame)
	return nil
}

// Finish drains and commits any buffered window and transitions to Done.
// Calling Finish more than once, or on an operator that never received a
// frame, is a no-op.
func (op *Operator) Finish(ctx context.Context) error {
	if op.state == Encoding {
		if err := op.commitWindow(ctx); err != nil {
			return err
		}
	}
	op.state = Done
	return nil
}

// Run drives the operator to completion over a full decoded frame stream,
// committing every GOP-aligned window it accumulates. The decoder is
// pulled through the generic tasmio.Stage abstraction (via video.AsStage)
// rather than called directly, so this stage composes the same way every
// other stage in the pipeline does.
func Run(ctx context.Context, cfg Config, frames video.Decoder) error {
	op := New(cfg)
	stage := video.AsStage(ctx, frames)
	for {
		f, ok, err := stage.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := op.ProcessFrame(ctx, f); err != nil {
			return err
		}
	}
	return op.Finish(ctx)
}

// Ingest runs the operator with a Single full-frame provider, mirroring
// the original implementation's plain VideoManager::store path (§12): the
// initial single-tile ingest is committed by the same state machine as
// every later re-tile (on an empty entry, as version 1), just
// parameterized with layout.NewSingleProvider.
func Ingest(ctx context.Context, entry *catalog.Entry, newSession video.SessionFactory, ext string, frameWidth, frameHeight uint32, frames video.Decoder) error {
	l, err := layout.NewExplicit([]uint32{frameWidth}, []uint32{frameHeight})
	if err != nil {
		return err
	}
	provider := layout.NewSingleProvider(l)
	return Run(ctx, Config{Entry: entry, Provider: provider, NewSession: newSession, Ext: ext}, frames)
}

// IngestUniform runs the operator with a Uniform rows x columns provider,
// mirroring VideoManager::storeWithUniformLayout (§12). frameWidth/
// frameHeight are used as both the coded and display dimensions: this
// entry point has no separate codec-padding configuration to plumb
// through, unlike the original's Configuration type (§4.C).
func IngestUniform(ctx context.Context, entry *catalog.Entry, newSession video.SessionFactory, ext string, rows, columns int, frameWidth, frameHeight uint32, frames video.Decoder) error {
	provider, err := layout.NewUniformProvider(rows, columns, frameWidth, frameHeight, frameWidth, frameHeight)
	if err != nil {
		return err
	}
	return Run(ctx, Config{Entry: entry, Provider: provider, NewSession: newSession, Ext: ext}, frames)
}
