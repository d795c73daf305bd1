package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/tasmerr"
)

// versionRange is one committed version directory's resolved metadata.
type versionRange struct {
	version   Version
	path      string
	frames    FrameRange
	layout    layout.TileLayout
	tileCount int
}

// LocationProvider builds an index from an Entry's on-disk directory
// listing: frame -> (version, layout, tileCount), and (frame, tile) ->
// path. Construction scans the directory once; lookups are served from
// the in-memory index afterward.
//
// A version directory is considered committed iff both "layout" and
// "frame-range" exist and tile-version references a value >= this
// directory's own version (§6); uncommitted or orphaned directories
// (e.g. left behind by a crash mid-CrackingTransaction) are ignored.
type LocationProvider struct {
	entry *Entry

	mu     sync.RWMutex
	ranges []versionRange // sorted by version, highest last
}

// NewLocationProvider scans entry's directory and builds the frame index.
func NewLocationProvider(entry *Entry) (*LocationProvider, error) {
	lp := &LocationProvider{entry: entry}
	if err := lp.rescan(); err != nil {
		return nil, err
	}
	return lp, nil
}

// Rescan re-reads the catalog directory from disk, picking up any versions
// committed since construction. Callers typically call this after a
// CrackingTransaction.Commit returns, though Commit's linearization point
// already guarantees any subsequent LocationProvider created fresh will
// see it.
func (lp *LocationProvider) Rescan() error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.rescanLocked()
}

func (lp *LocationProvider) rescan() error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.rescanLocked()
}

func (lp *LocationProvider) rescanLocked() error {
	current, err := lp.entry.CurrentVersion()
	if err != nil {
		return err
	}

	dirEntries, err := os.ReadDir(lp.entry.Path)
	if os.IsNotExist(err) {
		lp.ranges = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("catalog: reading %s: %w", lp.entry.Path, err)
	}

	prefix := lp.entry.Name + "-"
	var ranges []versionRange
	for _, de := range dirEntries {
		if !de.IsDir() || !strings.HasPrefix(de.Name(), prefix) {
			continue
		}
		vStr := strings.TrimPrefix(de.Name(), prefix)
		v, err := strconv.ParseUint(vStr, 10, 64)
		if err != nil {
			continue // not a version directory (e.g. unrelated subdirectory)
		}
		version := Version(v)
		if version > current {
			continue // orphaned: crashed before tile-version was bumped
		}

		dir := filepath.Join(lp.entry.Path, de.Name())
		fr, err := readFrameRange(dir)
		if err != nil {
			continue // uncommitted: frame-range missing or unreadable
		}
		l, err := readLayoutFile(dir)
		if err != nil {
			continue // uncommitted: layout missing or unreadable
		}

		ranges = append(ranges, versionRange{
			version:   version,
			path:      dir,
			frames:    fr,
			layout:    l,
			tileCount: l.NumberOfTiles(),
		})
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].version < ranges[j].version })
	lp.ranges = ranges
	return nil
}

// find returns the newest committed versionRange covering frame, or false
// if none does. Versions are scanned from newest to oldest so a newer
// version shadows an older one for any frame both claim to cover.
func (lp *LocationProvider) find(frame uint32) (versionRange, bool) {
	for i := len(lp.ranges) - 1; i >= 0; i-- {
		if lp.ranges[i].frames.Contains(frame) {
			return lp.ranges[i], true
		}
	}
	return versionRange{}, false
}

// LayoutForFrame returns the layout covering frame. It fails with
// tasmerr.NoSuchFrame if no committed version covers it.
func (lp *LocationProvider) LayoutForFrame(frame uint32) (layout.TileLayout, error) {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	vr, ok := lp.find(frame)
	if !ok {
		return layout.TileLayout{}, fmt.Errorf("catalog: frame %d: %w", frame, tasmerr.NoSuchFrame)
	}
	return vr.layout, nil
}

// VersionForFrame returns the version currently covering frame.
func (lp *LocationProvider) VersionForFrame(frame uint32) (Version, error) {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	vr, ok := lp.find(frame)
	if !ok {
		return 0, fmt.Errorf("catalog: frame %d: %w", frame, tasmerr.NoSuchFrame)
	}
	return vr.version, nil
}

// LocationOfTileForFrame returns the on-disk path of one tile's encoded
// stream for the version that currently covers frame.
func (lp *LocationProvider) LocationOfTileForFrame(frame uint32, tile layout.TileIndex, ext string) (string, error) {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	vr, ok := lp.find(frame)
	if !ok {
		return "", fmt.Errorf("catalog: frame %d: %w", frame, tasmerr.NoSuchFrame)
	}
	if int(tile) < 0 || int(tile) >= vr.tileCount {
		return "", fmt.Errorf("catalog: tile %d out of range [0,%d) for frame %d: %w", tile, vr.tileCount, frame, tasmerr.CorruptCatalog)
	}
	return TileFilePath(vr.path, tile, ext), nil
}

// VersionInfo is one committed version's resolved metadata, exported for
// introspection tools (cmd/tasmctl).
type VersionInfo struct {
	Version Version
	Frames  FrameRange
	Layout  layout.TileLayout
}

// Versions returns every committed version currently indexed, sorted
// ascending by version.
func (lp *LocationProvider) Versions() []VersionInfo {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	out := make([]VersionInfo, len(lp.ranges))
	for i, r := range lp.ranges {
		out[i] = VersionInfo{Version: r.version, Frames: r.frames, Layout: r.layout}
	}
	return out
}

// Runs groups an ascending, deduplicated frame sequence into maximal runs
// that share the same (version, layout), per §4.K step 2.
type Run struct {
	Version Version
	Layout  layout.TileLayout
	Frames  []uint32
}

// GroupIntoRuns groups frames (assumed sorted ascending) into maximal runs
// sharing the same version/layout, used by SelectionPipeline to decide
// tile-decode scheduling boundaries.
func (lp *LocationProvider) GroupIntoRuns(frames []uint32) ([]Run, error) {
	lp.mu.RLock()
	defer lp.mu.RUnlock()

	var runs []Run
	for _, f := range frames {
		vr, ok := lp.find(f)
		if !ok {
			return nil, fmt.Errorf("catalog: frame %d: %w", f, tasmerr.NoSuchFrame)
		}
		if len(runs) > 0 && runs[len(runs)-1].Version == vr.version {
			runs[len(runs)-1].Frames = append(runs[len(runs)-1].Frames, f)
			continue
		}
		runs = append(runs, Run{Version: vr.version, Layout: vr.layout, Frames: []uint32{f}})
	}
	return runs, nil
}
