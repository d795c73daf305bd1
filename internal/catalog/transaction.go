package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/faromero/tasm/internal/layout"
)

// CrackingTransaction is the scoped acquisition of a fresh version
// directory (§4.F): tile bytes are written into a staging directory with a
// collision-free name, and Commit atomically publishes it as the entry's
// new highest version. A transaction that is rolled back leaves no trace:
// Rollback removes the staging directory and tile-version is left
// untouched. A transaction abandoned without Rollback leaves its staging
// directory on disk; that name never parses as a version directory, so
// LocationProvider ignores it.
type CrackingTransaction struct {
	entry      *Entry
	newVersion Version
	stagingDir string

	mu        sync.Mutex
	sinks     map[layout.TileIndex]*os.File
	committed bool
	done      bool
}

// Begin opens a new CrackingTransaction for entry, targeting the version
// immediately after the entry's current highest version. The staging
// directory is created under entry.Path with a UUID suffix so that
// concurrent transactions (e.g. on different entries sharing a
// filesystem, or a retried transaction after a prior crash) never collide
// on a directory name.
func Begin(entry *Entry) (*CrackingTransaction, error) {
	current, err := entry.CurrentVersion()
	if err != nil {
		return nil, err
	}
	newVersion := current + 1

	staging := filepath.Join(entry.Path, fmt.Sprintf("%s-staging-%s", entry.versionDirName(newVersion), uuid.NewString()))
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("catalog: creating staging directory: %w", err)
	}

	return &CrackingTransaction{
		entry:      entry,
		newVersion: newVersion,
		stagingDir: staging,
		sinks:      make(map[layout.TileIndex]*os.File),
	}, nil
}

// Version returns the version this transaction will commit as, if it
// succeeds.
func (t *CrackingTransaction) Version() Version { return t.newVersion }

// Write returns a write sink for one tile's encoded file, named
// "<tile><ext>" inside the staging directory (e.g. "0.h264"). The caller
// is responsible for closing the returned writer before calling Commit.
func (t *CrackingTransaction) Write(tile layout.TileIndex, ext string) (io.WriteCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, fmt.Errorf("catalog: transaction already finished")
	}

	path := TileFilePath(t.stagingDir, tile, ext)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: creating tile file %s: %w", path, err)
	}
	t.sinks[tile] = f
	return f, nil
}

// Commit fsyncs the staging directory, writes the layout and frame-range
// descriptors, atomically renames the staging directory into place as
// "<entry>-<version>", and write-then-renames tile-version to point at the
// new version. After Commit returns, any subsequent LocationProvider
// lookup for a frame in fr sees l at this version (the linearization
// point, per §5).
func (t *CrackingTransaction) Commit(l layout.TileLayout, fr FrameRange) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return fmt.Errorf("catalog: transaction already finished")
	}

	for tile, f := range t.sinks {
		if err := f.Close(); err != nil {
			t.rollbackLocked()
			return fmt.Errorf("catalog: closing tile %d file: %w", tile, err)
		}
	}

	if err := writeLayoutFile(t.stagingDir, l); err != nil {
		t.rollbackLocked()
		return fmt.Errorf("catalog: writing layout descriptor: %w", err)
	}
	if err := writeFrameRange(t.stagingDir, fr); err != nil {
		t.rollbackLocked()
		return fmt.Errorf("catalog: writing frame-range descriptor: %w", err)
	}

	if err := syncDir(t.stagingDir); err != nil {
		t.rollbackLocked()
		return fmt.Errorf("catalog: syncing staging directory: %w", err)
	}

	finalDir := t.entry.VersionDirPath(t.newVersion)
	if err := os.Rename(t.stagingDir, finalDir); err != nil {
		t.rollbackLocked()
		return fmt.Errorf("catalog: publishing version directory: %w", err)
	}

	if err := writeVersionFile(t.entry.Path, t.newVersion); err != nil {
		// The version directory is already published but not yet
		// referenced by tile-version: a subsequent Rescan will ignore it
		// as an orphan (its version exceeds the recorded current one),
		// so this failure is safe to surface without further rollback.
		t.done = true
		return fmt.Errorf("catalog: bumping tile-version: %w", err)
	}

	t.committed = true
	t.done = true
	return nil
}

// Rollback removes the staging directory and all sinks opened against it.
// It is idempotent and safe to call unconditionally via defer after
// Begin; it is a no-op once Commit has succeeded.
func (t *CrackingTransaction) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbackLocked()
}

func (t *CrackingTransaction) rollbackLocked() {
	if t.done {
		return
	}
	for _, f := range t.sinks {
		f.Close()
	}
	os.RemoveAll(t.stagingDir)
	t.done = true
}

// syncDir fsyncs a directory so that its newly created children are
// durable before the rename that publishes it.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
