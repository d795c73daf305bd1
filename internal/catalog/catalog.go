// Package catalog implements the on-disk, versioned tile catalog (§3, §6):
// CatalogEntry bookkeeping, LocationProvider (frame -> version/layout/path
// resolution), and CrackingTransaction (atomic version commits).
package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/faromero/tasm/internal/layout"
	"github.com/faromero/tasm/internal/tasmerr"
)

// Version is a monotonically increasing, persisted tile-version number.
// Version 0 denotes the original, untiled ingest.
type Version uint64

// FrameRange is an inclusive frame span, [First, Last].
type FrameRange struct {
	First uint32
	Last  uint32
}

// Contains reports whether frame falls within the inclusive range.
func (r FrameRange) Contains(frame uint32) bool {
	return frame >= r.First && frame <= r.Last
}

const (
	versionFileName    = "tile-version"
	layoutFileName     = "layout"
	frameRangeFileName = "frame-range"
)

// Entry is a named, versioned collection of tiled videos on disk for one
// logical source video (§3's CatalogEntry).
type Entry struct {
	// Name is the catalog entry's name; version directories are named
	// "<Name>-<version>" under Path.
	Name string
	// MetadataIdentifier links this entry to the external semantic index.
	MetadataIdentifier string
	// Path is the entry's root directory.
	Path string
}

// versionDirName returns the directory name for a given version.
func (e *Entry) versionDirName(v Version) string {
	return fmt.Sprintf("%s-%d", e.Name, v)
}

// VersionDirPath returns the full path to a version's directory.
func (e *Entry) VersionDirPath(v Version) string {
	return filepath.Join(e.Path, e.versionDirName(v))
}

// CurrentVersion reads the tile-version file and returns the highest
// committed version. A missing file means no version has ever been
// committed; it returns 0 with no error (version 0 is always the implicit
// untiled ingest per §3).
func (e *Entry) CurrentVersion() (Version, error) {
	data, err := os.ReadFile(filepath.Join(e.Path, versionFileName))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: reading %s: %w", versionFileName, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("catalog: parsing %s: %w: %v", versionFileName, tasmerr.CorruptCatalog, err)
	}
	return Version(v), nil
}

// writeVersionFile durably bumps tile-version using write-then-rename, so
// readers either see the old value or the new one, never a torn write.
func writeVersionFile(entryPath string, v Version) error {
	tmp, err := os.CreateTemp(entryPath, versionFileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("catalog: creating temp version file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(strconv.FormatUint(uint64(v), 10)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("catalog: writing temp version file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("catalog: syncing temp version file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("catalog: closing temp version file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(entryPath, versionFileName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("catalog: renaming temp version file: %w", err)
	}
	return nil
}

// writeFrameRange writes the "<first> <last>\n" frame-range file.
func writeFrameRange(dir string, fr FrameRange) error {
	data := fmt.Sprintf("%d %d\n", fr.First, fr.Last)
	return os.WriteFile(filepath.Join(dir, frameRangeFileName), []byte(data), 0o644)
}

// readFrameRange parses a frame-range file.
func readFrameRange(dir string) (FrameRange, error) {
	f, err := os.Open(filepath.Join(dir, frameRangeFileName))
	if err != nil {
		return FrameRange{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return FrameRange{}, fmt.Errorf("catalog: empty %s: %w", frameRangeFileName, tasmerr.CorruptCatalog)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) != 2 {
		return FrameRange{}, fmt.Errorf("catalog: malformed %s %q: %w", frameRangeFileName, scanner.Text(), tasmerr.CorruptCatalog)
	}
	first, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return FrameRange{}, fmt.Errorf("catalog: malformed %s: %w", frameRangeFileName, tasmerr.CorruptCatalog)
	}
	last, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return FrameRange{}, fmt.Errorf("catalog: malformed %s: %w", frameRangeFileName, tasmerr.CorruptCatalog)
	}
	return FrameRange{First: uint32(first), Last: uint32(last)}, nil
}

// writeLayoutFile writes the serialized TileLayout for a version directory.
func writeLayoutFile(dir string, l layout.TileLayout) error {
	return os.WriteFile(filepath.Join(dir, layoutFileName), layout.Serialize(l), 0o644)
}

// readLayoutFile reads and deserializes the layout file for a version
// directory.
func readLayoutFile(dir string) (layout.TileLayout, error) {
	data, err := os.ReadFile(filepath.Join(dir, layoutFileName))
	if err != nil {
		return layout.TileLayout{}, err
	}
	return layout.Deserialize(data)
}

// TileFilePath returns the path to one tile's encoded stream within a
// version directory, using ext as the file extension (".h264", ".hevc",
// or ".mp4", per §6).
func TileFilePath(versionDir string, tile layout.TileIndex, ext string) string {
	return filepath.Join(versionDir, fmt.Sprintf("%d%s", int(tile), ext))
}
