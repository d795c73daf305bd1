// Package selection implements SelectionPipeline (§4.K): the query-time
// glue from a predicate over a catalog entry to a stream of RGB images,
// plus the regret feedback loop that can trigger a re-tile.
package selection

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sort"

	xdraw "golang.org/x/image/draw"

	"github.com/faromero/tasm/internal/catalog"
	"github.com/faromero/tasm/internal/cost"
	"github.com/faromero/tasm/internal/imagecodec"
	"github.com/faromero/tasm/internal/imagepool"
	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/operator"
	"github.com/faromero/tasm/internal/rect"
	"github.com/faromero/tasm/internal/regret"
	"github.com/faromero/tasm/internal/semantic"
	"github.com/faromero/tasm/internal/tasmerr"
	"github.com/faromero/tasm/internal/tasmlog"
	"github.com/faromero/tasm/internal/video"
)

// Mode selects the merge strategy for step 4 of §4.K.
type Mode int

const (
	// Objects copies every contributing tile's overlapping pixels into a
	// single full-layout canvas per output frame.
	Objects Mode = iota
	// Tiles emits each contributing tile's pixels independently.
	Tiles
)

// TileReader opens a stored tile stream for decode, seeked so the first
// frame returned by the resulting Decoder is startFrame (normally a GOP
// boundary). The real implementation wraps the external NVDEC decoder
// (§1, §6); tests use a fake.
type TileReader interface {
	Open(ctx context.Context, path string, startFrame uint32) (video.Decoder, error)
}

// Query is one selection request against a single catalog entry.
type Query struct {
	Entry               *catalog.Entry
	Predicate           semantic.Predicate
	FirstFrame          uint32
	LastFrame           uint32
	Mode                Mode
	MaxWidth, MaxHeight int

	// OutputFormat, if non-empty, additionally encodes every emitted
	// image into Image.Encoded via internal/imagecodec; an empty value
	// means only Image.Pixels is populated. OutputQuality is passed
	// through to the encoder (ignored by PNG).
	OutputFormat  imagecodec.Format
	OutputQuality int

	// CurrentLayoutID and Regret, if non-nil, enable the post-execution
	// regret feedback loop (§4.K, last paragraph): the query's touched
	// frames are teed into Regret under CurrentLayoutID, and any GOP whose
	// regret ledger now crosses the threshold is re-tiled in place.
	CurrentLayoutID string
	Regret          *regret.Accumulator
}

// Image is one output frame.
type Image struct {
	Frame  uint32
	Pixels *image.RGBA
	// Encoded holds Pixels encoded per Query.OutputFormat, when set.
	Encoded []byte
}

// Pipeline wires together the dependencies SelectionPipeline needs.
type Pipeline struct {
	semanticMgr *semantic.Manager
	locations   *catalog.LocationProvider
	reader      TileReader
	pool        *imagepool.Pool
	newSession  video.SessionFactory
	gopLength   uint32
	ext         string
	log         *tasmlog.Logger
}

// New builds a Pipeline for one catalog entry's resolved location index.
// newSession is only exercised if a query enables the regret feedback loop
// and a re-tile actually triggers; log may be nil.
func New(semanticMgr *semantic.Manager, locations *catalog.LocationProvider, reader TileReader, pool *imagepool.Pool, newSession video.SessionFactory, gopLength uint32, ext string, log *tasmlog.Logger) *Pipeline {
	return &Pipeline{
		semanticMgr: semanticMgr,
		locations:   locations,
		reader:      reader,
		pool:        pool,
		newSession:  newSession,
		gopLength:   gopLength,
		ext:         ext,
		log:         log,
	}
}

// Execute runs q to completion, returning the ordered image stream. An
// empty (nil) result with nil error means the predicate matched no
// frames (§4.K failure semantics: "not an error").
func (p *Pipeline) Execute(ctx context.Context, q Query) ([]Image, error) {
	frames, err := p.semanticMgr.OrderedFrames(ctx, q.Entry.MetadataIdentifier, q.Predicate, q.FirstFrame, q.LastFrame)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, nil
	}

	runs, err := p.locations.GroupIntoRuns(frames)
	if err != nil {
		return nil, err
	}

	var images []Image
	var touches []cost.FrameTouch
	for _, run := range runs {
		runImages, runTouches, err := p.executeRun(ctx, q, run)
		if err != nil {
			return nil, err
		}
		images = append(images, runImages...)
		touches = append(touches, runTouches...)
	}

	if q.Regret != nil && q.CurrentLayoutID != "" {
		if err := p.feedRegretAndRetile(ctx, q, touches); err != nil {
			return images, err
		}
	}

	if q.MaxWidth > 0 && q.MaxHeight > 0 {
		for i := range images {
			images[i].Pixels = fitWithin(images[i].Pixels, q.MaxWidth, q.MaxHeight)
		}
	}

	if q.OutputFormat != "" {
		for i := range images {
			data, err := imagecodec.Encode(images[i].Pixels, q.OutputFormat, q.OutputQuality)
			if err != nil {
				return images, fmt.Errorf("selection: encoding frame %d as %s: %w", images[i].Frame, q.OutputFormat, err)
			}
			images[i].Encoded = data
		}
	}

	return images, nil
}

// executeRun implements §4.K steps 2-4 for one maximal (version, layout)
// run: find the tiles the predicate touches, decode each from its GOP
// boundary, and merge per q.Mode. It also returns every touched frame's
// predicate rectangles, the raw material regret.Accumulator needs to cost
// this query against candidate layouts.
func (p *Pipeline) executeRun(ctx context.Context, q Query, run catalog.Run) ([]Image, []cost.FrameTouch, error) {
	if len(run.Frames) == 0 {
		return nil, nil, nil
	}
	requested := make(map[uint32]bool, len(run.Frames))
	for _, f := range run.Frames {
		requested[f] = true
	}
	gopStart := (run.Frames[0] / p.gopLength) * p.gopLength
	lastFrame := run.Frames[len(run.Frames)-1]

	touchedTiles := make(map[layout.TileIndex]bool)
	touches := make([]cost.FrameTouch, 0, len(run.Frames))
	var nextID rect.ID
	for _, f := range run.Frames {
		boxes, err := p.semanticMgr.RectanglesForFrame(ctx, q.Entry.MetadataIdentifier, f)
		if err != nil {
			return nil, nil, err
		}
		rects := make([]rect.Rectangle, len(boxes))
		for i, r := range boxes {
			r.ID = nextID
			nextID++
			rects[i] = r
			for _, t := range run.Layout.TilesForRectangle(r) {
				touchedTiles[t] = true
			}
		}
		touches = append(touches, cost.FrameTouch{Frame: f, Rectangles: rects})
	}
	if len(touchedTiles) == 0 {
		return nil, touches, nil
	}

	decoded := make(map[layout.TileIndex]map[uint32]*image.RGBA, len(touchedTiles))
	for tile := range touchedTiles {
		path, err := p.locations.LocationOfTileForFrame(run.Frames[0], tile, p.ext)
		if err != nil {
			return nil, nil, err
		}
		dec, err := p.reader.Open(ctx, path, gopStart)
		if err != nil {
			return nil, nil, fmt.Errorf("selection: opening tile %d at %s: %w", tile, path, tasmerr.CorruptCatalog)
		}
		frames, err := decodeThrough(ctx, dec, lastFrame, requested)
		if err != nil {
			return nil, nil, fmt.Errorf("selection: decoding tile %d: %w: %v", tile, tasmerr.DecoderReconfigureFailed, err)
		}
		decoded[tile] = frames
	}

	switch q.Mode {
	case Tiles:
		return p.mergeTiles(run, touchedTiles, decoded), touches, nil
	default:
		return p.mergeObjects(run, touchedTiles, decoded), touches, nil
	}
}

// decodeThrough drains dec, pulled through the generic tasmio.Stage
// abstraction (video.AsStage) rather than called directly, until a frame
// numbered beyond lastFrame arrives or the stream ends, keeping only
// frames the caller requested.
func decodeThrough(ctx context.Context, dec video.Decoder, lastFrame uint32, requested map[uint32]bool) (map[uint32]*image.RGBA, error) {
	stage := video.AsStage(ctx, dec)
	out := make(map[uint32]*image.RGBA)
	for {
		f, ok, err := stage.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		fn := uint32(f.Number)
		if requested[fn] {
			out[fn] = f.Pixels
		}
		if fn >= lastFrame {
			return out, nil
		}
	}
}

// mergeTiles implements §4.K step 4's Tiles mode: each tile's pixels are
// emitted independently, in ascending (frame, tile) order.
func (p *Pipeline) mergeTiles(run catalog.Run, touched map[layout.TileIndex]bool, decoded map[layout.TileIndex]map[uint32]*image.RGBA) []Image {
	var images []Image
	for _, f := range run.Frames {
		for t := 0; t < run.Layout.NumberOfTiles(); t++ {
			tile := layout.TileIndex(t)
			if !touched[tile] {
				continue
			}
			px, ok := decoded[tile][f]
			if !ok {
				continue
			}
			images = append(images, Image{Frame: f, Pixels: px})
		}
	}
	return images
}

// mergeObjects implements §4.K step 4's Objects mode: every contributing
// tile's overlapping pixels are copied into one full-layout canvas per
// output frame.
func (p *Pipeline) mergeObjects(run catalog.Run, touched map[layout.TileIndex]bool, decoded map[layout.TileIndex]map[uint32]*image.RGBA) []Image {
	var images []Image
	for _, f := range run.Frames {
		canvas := p.pool.Get(int(run.Layout.TotalWidth()), int(run.Layout.TotalHeight()))
		clearCanvas(canvas)
		wrote := false
		for t := 0; t < run.Layout.NumberOfTiles(); t++ {
			tile := layout.TileIndex(t)
			if !touched[tile] {
				continue
			}
			px, ok := decoded[tile][f]
			if !ok {
				continue
			}
			wrote = true
			r := run.Layout.RectangleForTile(tile)
			dst := image.Rect(int(r.X), int(r.Y), int(r.X)+px.Bounds().Dx(), int(r.Y)+px.Bounds().Dy())
			draw.Draw(canvas, dst, px, px.Bounds().Min, draw.Src)
		}
		if wrote {
			images = append(images, Image{Frame: f, Pixels: canvas})
		} else {
			p.pool.Put(canvas)
		}
	}
	return images
}

// clearCanvas zeroes a pooled canvas's pixels. imagepool.Pool.Get does not
// zero reused buffers (a prior query may have left live pixel data in
// one), so every canvas a merge composites into must be cleared first.
func clearCanvas(img *image.RGBA) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}

// feedRegretAndRetile implements §4.K's closed regret loop end to end:
// submit this query's real per-tile cost to q.Regret under
// q.CurrentLayoutID, then actuate any re-tile the threshold now demands
// (§4.J/§2's control flow: K tees into J, J's crossed GOPs feed a
// Conglomeration provider back into G).
func (p *Pipeline) feedRegretAndRetile(ctx context.Context, q Query, touches []cost.FrameTouch) error {
	if len(touches) == 0 {
		return nil
	}
	w := cost.Workload{Selections: []cost.Selection{{Frames: touches, Multiplier: 1}}}
	if err := q.Regret.AddRegretForQuery(w, q.CurrentLayoutID); err != nil {
		return err
	}
	return p.actuateRetile(ctx, q)
}

// actuateRetile re-tiles every GOP whose regret ledger currently crosses
// the threshold: it reconstructs that GOP's full frames from its current
// layout's tiles, re-ingests them under the winning candidate layout via a
// fresh TileOperator pass (§4.G), and resets that GOP's ledger entry.
func (p *Pipeline) actuateRetile(ctx context.Context, q Query) error {
	newLayouts := q.Regret.GetNewGOPLayouts()
	if len(newLayouts) == 0 {
		return nil
	}

	gops := make([]uint32, 0, len(newLayouts))
	for gop := range newLayouts {
		gops = append(gops, gop)
	}
	sort.Slice(gops, func(i, j int) bool { return gops[i] < gops[j] })

	retiled := false
	for _, gop := range gops {
		newLayout := newLayouts[gop]
		first, last, oldLayout, ok := p.gopFrameRange(gop)
		if !ok {
			continue
		}

		frames, err := p.reconstructFrames(ctx, first, last, oldLayout)
		if err != nil {
			return fmt.Errorf("selection: reconstructing gop %d for re-tile: %w", gop, err)
		}

		provider, err := layout.NewConglomeration(p.gopLength, map[uint32]layout.TileLayout{gop: newLayout})
		if err != nil {
			return err
		}

		p.log.Verbosef("selection: re-tiling gop %d, frames [%d,%d], %dx%d -> %dx%d", gop, first, last, oldLayout.Columns(), oldLayout.Rows(), newLayout.Columns(), newLayout.Rows())
		cfg := operator.Config{Entry: q.Entry, Provider: provider, NewSession: p.newSession, Ext: p.ext, Logger: p.log}
		if err := operator.Run(ctx, cfg, &sliceDecoder{frames: frames}); err != nil {
			return fmt.Errorf("selection: re-tiling gop %d: %w", gop, err)
		}
		q.Regret.ResetRegretForGOP(gop)
		retiled = true
	}

	if retiled {
		return p.locations.Rescan()
	}
	return nil
}

// gopFrameRange returns the committed frame range covering gop's keyframe
// and the layout that currently covers it, clipped to the shorter of
// gop's nominal length and the committed version's actual last frame (the
// final GOP of a clip may run short).
func (p *Pipeline) gopFrameRange(gop uint32) (first, last uint32, l layout.TileLayout, ok bool) {
	first = gop * p.gopLength
	last = first + p.gopLength - 1
	versions := p.locations.Versions()
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if v.Frames.Contains(first) {
			if v.Frames.Last < last {
				last = v.Frames.Last
			}
			return first, last, v.Layout, true
		}
	}
	return 0, 0, layout.TileLayout{}, false
}

// reconstructFrames decodes every tile of l across [first, last] and
// merges them into full-layout canvases, the same way mergeObjects does
// for a query's touched tiles, except here every tile is touched: a
// re-tile must re-derive the complete frame, not just a predicate's
// region.
func (p *Pipeline) reconstructFrames(ctx context.Context, first, last uint32, l layout.TileLayout) ([]video.Frame, error) {
	requested := make(map[uint32]bool, last-first+1)
	for f := first; f <= last; f++ {
		requested[f] = true
	}

	decoded := make(map[layout.TileIndex]map[uint32]*image.RGBA, l.NumberOfTiles())
	for t := 0; t < l.NumberOfTiles(); t++ {
		tile := layout.TileIndex(t)
		path, err := p.locations.LocationOfTileForFrame(first, tile, p.ext)
		if err != nil {
			return nil, err
		}
		dec, err := p.reader.Open(ctx, path, first)
		if err != nil {
			return nil, fmt.Errorf("selection: opening tile %d at %s: %w", tile, path, tasmerr.CorruptCatalog)
		}
		frames, err := decodeThrough(ctx, dec, last, requested)
		if err != nil {
			return nil, fmt.Errorf("selection: decoding tile %d: %w: %v", tile, tasmerr.DecoderReconfigureFailed, err)
		}
		decoded[tile] = frames
	}

	out := make([]video.Frame, 0, last-first+1)
	for f := first; f <= last; f++ {
		canvas := p.pool.Get(int(l.TotalWidth()), int(l.TotalHeight()))
		clearCanvas(canvas)
		for t := 0; t < l.NumberOfTiles(); t++ {
			tile := layout.TileIndex(t)
			px, ok := decoded[tile][f]
			if !ok {
				continue
			}
			r := l.RectangleForTile(tile)
			dst := image.Rect(int(r.X), int(r.Y), int(r.X)+px.Bounds().Dx(), int(r.Y)+px.Bounds().Dy())
			draw.Draw(canvas, dst, px, px.Bounds().Min, draw.Src)
		}
		out = append(out, video.Frame{Number: video.FrameNumber(f), Pixels: canvas, Width: canvas.Bounds().Dx(), Height: canvas.Bounds().Dy()})
	}
	return out, nil
}

// sliceDecoder replays a fixed, already-decoded frame sequence. It feeds
// frames reconstructed from an old layout's tiles back into operator.Run
// during a re-tile, where there is no external NVDEC stream to pull from:
// the frames are already in memory.
type sliceDecoder struct {
	frames []video.Frame
	pos    int
}

func (d *sliceDecoder) Read(ctx context.Context) (video.Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return video.Frame{}, false, err
	}
	if d.pos >= len(d.frames) {
		return video.Frame{}, false, nil
	}
	f := d.frames[d.pos]
	d.pos++
	return f, true, nil
}

// fitWithin scales img down (preserving aspect ratio) to fit within
// (maxWidth, maxHeight) using high-quality resampling, matching §4.K step
// 5's output sizing contract. Images already within bounds are returned
// unchanged.
func fitWithin(img *image.RGBA, maxWidth, maxHeight int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth && h <= maxHeight {
		return img
	}

	scale := float64(maxWidth) / float64(w)
	if hs := float64(maxHeight) / float64(h); hs < scale {
		scale = hs
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
