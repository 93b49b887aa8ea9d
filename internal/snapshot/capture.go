package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/swapsafe/internal/resource"
	"github.com/blackwell-systems/swapsafe/internal/store"
)

// manifestName is the restore manifest's filename inside a snapshot
// directory.
const manifestName = "manifest.json"

// Capture copies the current state of every path in the set into a new
// snapshot directory and records it in the database. The copies and the
// manifest are fsynced before Capture returns; a successful return means the
// snapshot is durable and a restore can reproduce the captured state
// byte-for-byte, including the absence of paths that did not exist.
func (m *Manager) Capture(set *resource.Set, reason string) (*Snapshot, error) {
	paths, err := set.Expand()
	if err != nil {
		return nil, fmt.Errorf("failed to expand resource set: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// Timestamp plus a short unique suffix: readable in listings, no
	// collisions when snapshots land within the same second.
	dirName := time.Now().Format("2006-01-02-150405") + "-" + uuid.NewString()[:8]
	snapDir := filepath.Join(m.dir, dirName)
	filesDir := filepath.Join(snapDir, "files")
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	manifest := &Manifest{
		Component: set.Name,
		Reason:    reason,
		CreatedAt: time.Now(),
		Patterns:  set.Patterns,
	}

	var totalBytes int64
	for i, path := range paths {
		info, err := os.Lstat(path)
		if err != nil {
			if os.IsNotExist(err) {
				manifest.Files = append(manifest.Files, &FileEntry{Path: path, Absent: true})
				continue
			}
			os.RemoveAll(snapDir)
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		// Symlinks are captured as their target, not their target's bytes;
		// restoring one recreates the link.
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				os.RemoveAll(snapDir)
				return nil, fmt.Errorf("failed to read symlink %s: %w", path, err)
			}
			manifest.Files = append(manifest.Files, &FileEntry{Path: path, Link: target})
			continue
		}

		stored := filepath.Join("files", fmt.Sprintf("f%04d", i))
		digest, size, err := copyFileSynced(path, filepath.Join(snapDir, stored))
		if err != nil {
			os.RemoveAll(snapDir)
			return nil, fmt.Errorf("failed to capture %s: %w", path, err)
		}

		manifest.Files = append(manifest.Files, &FileEntry{
			Path:   path,
			Stored: stored,
			Mode:   info.Mode().Perm(),
			Size:   size,
			SHA256: digest,
		})
		totalBytes += size
	}

	if err := writeManifest(snapDir, manifest); err != nil {
		os.RemoveAll(snapDir)
		return nil, err
	}

	// Fsync the snapshot dir so the manifest's directory entry survives a
	// crash; without this the snapshot is not durable yet.
	if err := syncDir(snapDir); err != nil {
		os.RemoveAll(snapDir)
		return nil, fmt.Errorf("failed to sync snapshot directory: %w", err)
	}

	id, err := m.store.InsertSnapshot(&store.Snapshot{
		CreatedAt:  manifest.CreatedAt,
		Component:  set.Name,
		Reason:     reason,
		FileCount:  len(manifest.Files),
		TotalBytes: totalBytes,
		Dir:        snapDir,
	})
	if err != nil {
		// Clean up the copies if the record can't be written.
		os.RemoveAll(snapDir)
		return nil, fmt.Errorf("failed to record snapshot: %w", err)
	}

	for _, f := range manifest.Files {
		rec := &store.SnapshotFile{
			SnapshotID: id,
			Path:       f.Path,
			SizeBytes:  f.Size,
			SHA256:     f.SHA256,
			Absent:     f.Absent,
		}
		if err := m.store.InsertSnapshotFile(rec); err != nil {
			os.RemoveAll(snapDir)
			m.store.DeleteSnapshot(id)
			return nil, fmt.Errorf("failed to record snapshot file %s: %w", f.Path, err)
		}
	}

	return &Snapshot{ID: id, Dir: snapDir, Manifest: manifest}, nil
}

// ListSnapshots returns all snapshot records, newest first.
func (m *Manager) ListSnapshots() ([]*store.Snapshot, error) {
	return m.store.ListSnapshots()
}

// Prune disposes snapshot file copies beyond the keep most recent ones.
// When olderThan is non-zero only snapshots older than that are disposed.
// Records stay in the database as an audit trail. Returns the number of
// snapshots disposed.
func (m *Manager) Prune(keep int, olderThan time.Duration) (int, error) {
	snaps, err := m.store.ListSnapshots()
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	cutoff := time.Time{}
	if olderThan > 0 {
		cutoff = time.Now().Add(-olderThan)
	}

	disposed := 0
	for i, snap := range snaps {
		if i < keep || snap.Disposed {
			continue
		}
		if !cutoff.IsZero() && snap.CreatedAt.After(cutoff) {
			continue
		}
		if err := m.disposeByRecord(snap); err != nil {
			return disposed, err
		}
		disposed++
	}
	return disposed, nil
}

// writeManifest writes and fsyncs the manifest file.
func writeManifest(snapDir string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(snapDir, manifestName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync manifest: %w", err)
	}
	return nil
}

// loadManifest reads and parses a snapshot's manifest file.
func loadManifest(snapDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(snapDir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

// copyFileSynced copies src to dst, fsyncs dst, and returns the content
// digest and size.
func copyFileSynced(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		return "", 0, err
	}
	if err := out.Sync(); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// syncDir fsyncs a directory so its entries are durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
