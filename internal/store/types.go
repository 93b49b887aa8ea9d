package store

import "time"

// Snapshot is a database record describing one captured snapshot. The file
// copies themselves live under Dir; this record is the audit trail and is
// retained even after the copies are disposed.
type Snapshot struct {
	ID         int64
	CreatedAt  time.Time
	Component  string
	Reason     string
	FileCount  int
	TotalBytes int64
	Dir        string
	Disposed   bool
}

// SnapshotFile records one path captured in a snapshot. Absent marks a path
// that did not exist at capture time; restoring such an entry deletes
// whatever the mutation may have created there.
type SnapshotFile struct {
	SnapshotID int64
	Path       string
	SizeBytes  int64
	SHA256     string
	Absent     bool
}

// Transaction records one run of the snapshot-mutate-verify-rollback cycle.
type Transaction struct {
	ID         string
	Component  string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	SnapshotID int64
}

// StepResult records the outcome of one mutation step within a transaction.
type StepResult struct {
	TxnID      string
	Seq        int
	Name       string
	Status     string
	DurationMS int64
	Output     string
}

// CheckResult records the outcome of one verification check within a
// transaction.
type CheckResult struct {
	TxnID  string
	Name   string
	Passed bool
	Detail string
}
