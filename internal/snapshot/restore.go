package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/swapsafe/internal/resource"
	"github.com/blackwell-systems/swapsafe/internal/store"
)

// RestoreFailure is one path that could not be restored.
type RestoreFailure struct {
	Path string
	Err  error
}

// RestoreError reports the paths that failed to restore. A restore never
// stops at the first failure: every restorable path is restored and the
// rest are collected here so the operator can see exactly what is still
// wrong.
type RestoreError struct {
	Failures []RestoreFailure
}

func (e *RestoreError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Path, f.Err)
	}
	return fmt.Sprintf("failed to restore %d path(s): %s", len(e.Failures), strings.Join(parts, "; "))
}

// Load returns the snapshot with the given ID, reading its manifest from
// disk. Fails if the snapshot's file copies have been disposed.
func (m *Manager) Load(id int64) (*Snapshot, error) {
	rec, err := m.store.GetSnapshot(id)
	if err != nil {
		return nil, err
	}
	return m.loadRecord(rec)
}

// Latest returns the most recent snapshot.
func (m *Manager) Latest() (*Snapshot, error) {
	rec, err := m.store.LatestSnapshot()
	if err != nil {
		return nil, err
	}
	return m.loadRecord(rec)
}

func (m *Manager) loadRecord(rec *store.Snapshot) (*Snapshot, error) {
	if rec.Disposed {
		return nil, fmt.Errorf("snapshot %d has been disposed, its file copies are gone", rec.ID)
	}
	manifest, err := loadManifest(rec.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %d: %w", rec.ID, err)
	}
	return &Snapshot{ID: rec.ID, Dir: rec.Dir, Manifest: manifest}, nil
}

// Restore copies every captured path back to its original location. Symlink
// entries are recreated as links; absent entries delete whatever now
// occupies the path. Files a mutation created that match the set's patterns
// but have no manifest entry are deleted, so the expanded set after restore
// equals the set at capture time. Failures are collected per path and
// returned as a *RestoreError; paths that can be restored are, regardless
// of what happens to the others.
func (m *Manager) Restore(snap *Snapshot) error {
	var failures []RestoreFailure

	known := make(map[string]bool, len(snap.Manifest.Files))
	for _, entry := range snap.Manifest.Files {
		known[entry.Path] = true
	}

	// Literal patterns are covered by absent entries; glob patterns can
	// match files that did not exist at capture time, so re-expand and
	// remove the strays first.
	if len(snap.Manifest.Patterns) > 0 {
		set := resource.New(snap.Manifest.Component, snap.Manifest.Patterns)
		paths, err := set.Expand()
		if err != nil {
			failures = append(failures, RestoreFailure{
				Path: snap.Manifest.Component,
				Err:  fmt.Errorf("failed to expand resource set: %w", err),
			})
		}
		for _, path := range paths {
			if known[path] {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				failures = append(failures, RestoreFailure{Path: path, Err: err})
			}
		}
	}

	for _, entry := range snap.Manifest.Files {
		switch {
		case entry.Absent:
			if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
				failures = append(failures, RestoreFailure{Path: entry.Path, Err: err})
			}

		case entry.Link != "":
			if err := restoreLink(entry); err != nil {
				failures = append(failures, RestoreFailure{Path: entry.Path, Err: err})
			}

		default:
			if err := restoreFile(filepath.Join(snap.Dir, entry.Stored), entry); err != nil {
				failures = append(failures, RestoreFailure{Path: entry.Path, Err: err})
			}
		}
	}

	if len(failures) > 0 {
		return &RestoreError{Failures: failures}
	}
	return nil
}

// Dispose removes a snapshot's file copies and marks the record disposed.
// Idempotent: disposing an already-disposed snapshot is a no-op.
func (m *Manager) Dispose(snap *Snapshot) error {
	if err := os.RemoveAll(snap.Dir); err != nil {
		return fmt.Errorf("failed to remove snapshot directory: %w", err)
	}
	if err := m.store.MarkSnapshotDisposed(snap.ID); err != nil {
		return err
	}
	return nil
}

// disposeByRecord disposes a snapshot known only by its database record.
func (m *Manager) disposeByRecord(rec *store.Snapshot) error {
	if err := os.RemoveAll(rec.Dir); err != nil {
		return fmt.Errorf("failed to remove snapshot directory %s: %w", rec.Dir, err)
	}
	return m.store.MarkSnapshotDisposed(rec.ID)
}

// restoreLink recreates a captured symlink, replacing whatever occupies the
// path now.
func restoreLink(entry *FileEntry) error {
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(entry.Path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.Symlink(entry.Link, entry.Path); err != nil {
		return fmt.Errorf("failed to recreate symlink: %w", err)
	}
	return nil
}

// restoreFile writes a stored copy back to its original path, creating
// parent directories as needed and restoring the captured mode.
func restoreFile(stored string, entry *FileEntry) error {
	in, err := os.Open(stored)
	if err != nil {
		return fmt.Errorf("failed to open stored copy: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(entry.Path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	// If a mutation left a symlink here, O_TRUNC would write through it
	// into the target; drop the link first.
	if info, err := os.Lstat(entry.Path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(entry.Path); err != nil {
			return fmt.Errorf("failed to remove symlink at target: %w", err)
		}
	}

	out, err := os.OpenFile(entry.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode)
	if err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}

	// O_TRUNC on an existing file keeps its old mode; enforce the captured one.
	if err := out.Chmod(entry.Mode); err != nil {
		return fmt.Errorf("failed to restore mode: %w", err)
	}
	return nil
}
