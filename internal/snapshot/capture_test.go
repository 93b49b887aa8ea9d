package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwell-systems/swapsafe/internal/resource"
	"github.com/blackwell-systems/swapsafe/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return New(st, filepath.Join(t.TempDir(), "snapshots"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestCaptureCopiesFiles(t *testing.T) {
	m := newTestManager(t)
	live := t.TempDir()

	libPath := filepath.Join(live, "libx.so")
	writeFile(t, libPath, "original library bytes")

	set := resource.New("libx", []string{libPath})
	snap, err := m.Capture(set, "before apply")
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if snap.ID == 0 {
		t.Error("Expected non-zero snapshot ID")
	}
	if len(snap.Manifest.Files) != 1 {
		t.Fatalf("Expected 1 manifest entry, got %d", len(snap.Manifest.Files))
	}

	entry := snap.Manifest.Files[0]
	if entry.Absent {
		t.Error("Expected entry to not be absent")
	}

	stored, err := os.ReadFile(filepath.Join(snap.Dir, entry.Stored))
	if err != nil {
		t.Fatalf("Failed to read stored copy: %v", err)
	}
	if string(stored) != "original library bytes" {
		t.Errorf("Stored copy differs from source: %q", stored)
	}

	// Manifest must be on disk
	if _, err := os.Stat(filepath.Join(snap.Dir, manifestName)); err != nil {
		t.Errorf("Expected manifest file: %v", err)
	}
}

func TestCaptureRecordsTombstones(t *testing.T) {
	m := newTestManager(t)
	live := t.TempDir()

	missing := filepath.Join(live, "not-installed.so")
	set := resource.New("libx", []string{missing})

	snap, err := m.Capture(set, "test")
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if len(snap.Manifest.Files) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(snap.Manifest.Files))
	}
	if !snap.Manifest.Files[0].Absent {
		t.Error("Expected absent entry for missing path")
	}
}

func TestCaptureEmptySet(t *testing.T) {
	m := newTestManager(t)

	set := resource.New("empty", nil)
	snap, err := m.Capture(set, "test")
	if err != nil {
		t.Fatalf("Capture of empty set failed: %v", err)
	}
	if len(snap.Manifest.Files) != 0 {
		t.Errorf("Expected no entries, got %d", len(snap.Manifest.Files))
	}
}

func TestCaptureWritesDatabaseRecords(t *testing.T) {
	m := newTestManager(t)
	live := t.TempDir()

	writeFile(t, filepath.Join(live, "a.so"), "aaaa")
	writeFile(t, filepath.Join(live, "b.so"), "bb")

	set := resource.New("libx", []string{filepath.Join(live, "*.so")})
	snap, err := m.Capture(set, "before apply")
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	rec, err := m.store.GetSnapshot(snap.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if rec.Component != "libx" {
		t.Errorf("Expected component libx, got %q", rec.Component)
	}
	if rec.FileCount != 2 {
		t.Errorf("Expected 2 files, got %d", rec.FileCount)
	}
	if rec.TotalBytes != 6 {
		t.Errorf("Expected 6 total bytes, got %d", rec.TotalBytes)
	}

	files, err := m.store.GetSnapshotFiles(snap.ID)
	if err != nil {
		t.Fatalf("GetSnapshotFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 file records, got %d", len(files))
	}
}

func TestCaptureUnreadableSource(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	m := newTestManager(t)
	live := t.TempDir()

	libPath := filepath.Join(live, "libx.so")
	writeFile(t, libPath, "secret")
	if err := os.Chmod(libPath, 0000); err != nil {
		t.Fatalf("Failed to chmod: %v", err)
	}

	set := resource.New("libx", []string{libPath})
	if _, err := m.Capture(set, "test"); err == nil {
		t.Error("Expected error for unreadable source, got nil")
	}
}

func TestPruneKeepsRecent(t *testing.T) {
	m := newTestManager(t)
	live := t.TempDir()
	libPath := filepath.Join(live, "libx.so")
	writeFile(t, libPath, "bytes")

	set := resource.New("libx", []string{libPath})
	var snaps []*Snapshot
	for i := 0; i < 3; i++ {
		snap, err := m.Capture(set, "test")
		if err != nil {
			t.Fatalf("Capture failed: %v", err)
		}
		snaps = append(snaps, snap)
		time.Sleep(10 * time.Millisecond)
	}

	disposed, err := m.Prune(1, 0)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if disposed != 2 {
		t.Errorf("Expected 2 disposed, got %d", disposed)
	}

	// Newest keeps its file copies
	if _, err := os.Stat(snaps[2].Dir); err != nil {
		t.Errorf("Expected newest snapshot dir to survive: %v", err)
	}
	// Oldest copies are gone, record remains
	if _, err := os.Stat(snaps[0].Dir); !os.IsNotExist(err) {
		t.Errorf("Expected oldest snapshot dir removed, got %v", err)
	}
	if _, err := m.store.GetSnapshot(snaps[0].ID); err != nil {
		t.Errorf("Expected audit record to remain: %v", err)
	}
}

func TestPruneOlderThan(t *testing.T) {
	m := newTestManager(t)
	live := t.TempDir()
	libPath := filepath.Join(live, "libx.so")
	writeFile(t, libPath, "bytes")

	set := resource.New("libx", []string{libPath})
	if _, err := m.Capture(set, "test"); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	// Fresh snapshot is newer than the cutoff, nothing to do
	disposed, err := m.Prune(0, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if disposed != 0 {
		t.Errorf("Expected 0 disposed, got %d", disposed)
	}
}

func TestCaptureCleansUpWhenFileRecordFails(t *testing.T) {
	m := newTestManager(t)
	live := t.TempDir()

	libPath := filepath.Join(live, "libx.so")
	writeFile(t, libPath, "bytes")

	// Sabotage the per-file table so InsertSnapshotFile fails mid-capture
	if _, err := m.store.DB().Exec(`DROP TABLE snapshot_files`); err != nil {
		t.Fatalf("Failed to drop table: %v", err)
	}

	set := resource.New("libx", []string{libPath})
	if _, err := m.Capture(set, "doomed"); err == nil {
		t.Fatal("Expected capture to fail, got nil")
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("Failed to read snapshot root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected snapshot directory cleaned up, found %d entries", len(entries))
	}

	snaps, err := m.store.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("Expected no snapshot records left behind, got %d", len(snaps))
	}
}
