package store

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return s
}

func TestCreateSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Errorf("Second CreateSchema failed: %v", err)
	}
}

func TestInsertAndGetSnapshot(t *testing.T) {
	s := newTestStore(t)

	snap := &Snapshot{
		CreatedAt:  time.Now().Round(time.Second),
		Component:  "libinput-nodebounce",
		Reason:     "before apply",
		FileCount:  3,
		TotalBytes: 4096,
		Dir:        "/var/lib/swapsafe/snapshots/2026-01-02-030405-abcd1234",
	}

	id, err := s.InsertSnapshot(snap)
	if err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected non-zero snapshot ID")
	}

	got, err := s.GetSnapshot(id)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	if got.Component != snap.Component {
		t.Errorf("Expected component %q, got %q", snap.Component, got.Component)
	}
	if got.FileCount != snap.FileCount {
		t.Errorf("Expected file count %d, got %d", snap.FileCount, got.FileCount)
	}
	if got.TotalBytes != snap.TotalBytes {
		t.Errorf("Expected total bytes %d, got %d", snap.TotalBytes, got.TotalBytes)
	}
	if got.Disposed {
		t.Error("Expected new snapshot to not be disposed")
	}
}

func TestGetSnapshotNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSnapshot(9999); err == nil {
		t.Error("Expected error for missing snapshot, got nil")
	}
}

func TestLatestSnapshot(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LatestSnapshot(); err == nil {
		t.Error("Expected error when no snapshots exist, got nil")
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := s.InsertSnapshot(&Snapshot{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Component: "libx",
			Dir:       "/tmp/snap",
		})
		if err != nil {
			t.Fatalf("InsertSnapshot failed: %v", err)
		}
	}

	latest, err := s.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest.ID != 3 {
		t.Errorf("Expected latest snapshot ID 3, got %d", latest.ID)
	}
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 2; i++ {
		_, err := s.InsertSnapshot(&Snapshot{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Component: "libx",
			Dir:       "/tmp/snap",
		})
		if err != nil {
			t.Fatalf("InsertSnapshot failed: %v", err)
		}
	}

	snaps, err := s.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(snaps))
	}
	if !snaps[0].CreatedAt.After(snaps[1].CreatedAt) {
		t.Error("Expected newest snapshot first")
	}
}

func TestSnapshotFiles(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertSnapshot(&Snapshot{
		CreatedAt: time.Now(),
		Component: "libx",
		Dir:       "/tmp/snap",
	})
	if err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}

	files := []*SnapshotFile{
		{SnapshotID: id, Path: "/opt/lib/libx.so", SizeBytes: 100, SHA256: "aa"},
		{SnapshotID: id, Path: "/opt/lib/libx.so.1", SizeBytes: 0, Absent: true},
	}
	for _, f := range files {
		if err := s.InsertSnapshotFile(f); err != nil {
			t.Fatalf("InsertSnapshotFile failed: %v", err)
		}
	}

	got, err := s.GetSnapshotFiles(id)
	if err != nil {
		t.Fatalf("GetSnapshotFiles failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(got))
	}
	if got[0].Path != "/opt/lib/libx.so" {
		t.Errorf("Expected path ordering, got %q first", got[0].Path)
	}
	if !got[1].Absent {
		t.Error("Expected second file to be marked absent")
	}
}

func TestMarkSnapshotDisposed(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertSnapshot(&Snapshot{
		CreatedAt: time.Now(),
		Component: "libx",
		Dir:       "/tmp/snap",
	})
	if err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}

	// Marking twice must not error
	for i := 0; i < 2; i++ {
		if err := s.MarkSnapshotDisposed(id); err != nil {
			t.Fatalf("MarkSnapshotDisposed failed: %v", err)
		}
	}

	snap, err := s.GetSnapshot(id)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !snap.Disposed {
		t.Error("Expected snapshot to be marked disposed")
	}
}

func TestDeleteSnapshotCascadesFiles(t *testing.T) {
	s := newTestStore(t)

	id, err := s.InsertSnapshot(&Snapshot{
		CreatedAt: time.Now(),
		Component: "libx",
		Dir:       "/tmp/snap",
	})
	if err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	if err := s.InsertSnapshotFile(&SnapshotFile{SnapshotID: id, Path: "/opt/lib/libx.so"}); err != nil {
		t.Fatalf("InsertSnapshotFile failed: %v", err)
	}

	if err := s.DeleteSnapshot(id); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}

	files, err := s.GetSnapshotFiles(id)
	if err != nil {
		t.Fatalf("GetSnapshotFiles failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected file records to cascade on delete, got %d", len(files))
	}
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestStore(t)

	snapID, err := s.InsertSnapshot(&Snapshot{
		CreatedAt: time.Now(),
		Component: "libx",
		Dir:       "/tmp/snap",
	})
	if err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}

	txn := &Transaction{
		ID:        "txn-1234",
		Component: "libx",
		StartedAt: time.Now().Round(time.Second),
		Outcome:   "running",
	}
	if err := s.InsertTransaction(txn); err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	finished := time.Now().Round(time.Second)
	if err := s.FinishTransaction(txn.ID, "committed", snapID, finished); err != nil {
		t.Fatalf("FinishTransaction failed: %v", err)
	}

	txns, err := s.ListTransactions(10)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txns))
	}
	if txns[0].Outcome != "committed" {
		t.Errorf("Expected outcome committed, got %q", txns[0].Outcome)
	}
	if txns[0].SnapshotID != snapID {
		t.Errorf("Expected snapshot ID %d, got %d", snapID, txns[0].SnapshotID)
	}
	if txns[0].FinishedAt.IsZero() {
		t.Error("Expected finished_at to be set")
	}
}

func TestStepAndCheckResults(t *testing.T) {
	s := newTestStore(t)

	txn := &Transaction{ID: "txn-1", Component: "libx", StartedAt: time.Now()}
	if err := s.InsertTransaction(txn); err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	steps := []*StepResult{
		{TxnID: "txn-1", Seq: 0, Name: "fetch", Status: "ok", DurationMS: 1200},
		{TxnID: "txn-1", Seq: 1, Name: "build", Status: "failed", DurationMS: 540, Output: "ninja: error"},
	}
	for _, r := range steps {
		if err := s.InsertStepResult(r); err != nil {
			t.Fatalf("InsertStepResult failed: %v", err)
		}
	}

	got, err := s.GetStepResults("txn-1")
	if err != nil {
		t.Fatalf("GetStepResults failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 step results, got %d", len(got))
	}
	if got[0].Name != "fetch" || got[1].Name != "build" {
		t.Errorf("Expected execution order, got %q then %q", got[0].Name, got[1].Name)
	}
	if got[1].Output != "ninja: error" {
		t.Errorf("Expected captured output, got %q", got[1].Output)
	}

	if err := s.InsertCheckResult(&CheckResult{TxnID: "txn-1", Name: "version", Passed: true, Detail: "1.25.0"}); err != nil {
		t.Fatalf("InsertCheckResult failed: %v", err)
	}

	checks, err := s.GetCheckResults("txn-1")
	if err != nil {
		t.Fatalf("GetCheckResults failed: %v", err)
	}
	if len(checks) != 1 || !checks[0].Passed {
		t.Errorf("Unexpected check results: %+v", checks)
	}
}
