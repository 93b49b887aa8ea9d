package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Snapshot operations

// InsertSnapshot inserts a snapshot record and returns its ID.
func (s *Store) InsertSnapshot(snap *Snapshot) (int64, error) {
	query := `
		INSERT INTO snapshots (created_at, component, reason, file_count, total_bytes, dir, disposed)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`

	result, err := s.db.Exec(query,
		snap.CreatedAt.Format(time.RFC3339),
		snap.Component,
		snap.Reason,
		snap.FileCount,
		snap.TotalBytes,
		snap.Dir,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshot ID: %w", err)
	}
	return id, nil
}

// InsertSnapshotFile inserts a per-path record for a snapshot.
func (s *Store) InsertSnapshotFile(f *SnapshotFile) error {
	query := `
		INSERT INTO snapshot_files (snapshot_id, path, size_bytes, sha256, absent)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, f.SnapshotID, f.Path, f.SizeBytes, f.SHA256, f.Absent)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot file %s: %w", f.Path, err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot record by ID.
func (s *Store) GetSnapshot(id int64) (*Snapshot, error) {
	query := `
		SELECT id, created_at, component, reason, file_count, total_bytes, dir, disposed
		FROM snapshots
		WHERE id = ?
	`

	snap, err := scanSnapshot(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %d: %w", id, err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recently created snapshot record, or an
// error if none exist.
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	query := `
		SELECT id, created_at, component, reason, file_count, total_bytes, dir, disposed
		FROM snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(s.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no snapshots available")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns all snapshot records, newest first.
func (s *Store) ListSnapshots() ([]*Snapshot, error) {
	query := `
		SELECT id, created_at, component, reason, file_count, total_bytes, dir, disposed
		FROM snapshots
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// GetSnapshotFiles returns the per-path records for a snapshot, ordered by
// path.
func (s *Store) GetSnapshotFiles(snapshotID int64) ([]*SnapshotFile, error) {
	query := `
		SELECT snapshot_id, path, size_bytes, sha256, absent
		FROM snapshot_files
		WHERE snapshot_id = ?
		ORDER BY path
	`

	rows, err := s.db.Query(query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot files: %w", err)
	}
	defer rows.Close()

	var files []*SnapshotFile
	for rows.Next() {
		var f SnapshotFile
		if err := rows.Scan(&f.SnapshotID, &f.Path, &f.SizeBytes, &f.SHA256, &f.Absent); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot file: %w", err)
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// MarkSnapshotDisposed marks a snapshot's file copies as removed. The record
// itself is kept as an audit trail. Safe to call repeatedly.
func (s *Store) MarkSnapshotDisposed(id int64) error {
	if _, err := s.db.Exec(`UPDATE snapshots SET disposed = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark snapshot %d disposed: %w", id, err)
	}
	return nil
}

// DeleteSnapshot removes a snapshot record and its file records.
func (s *Store) DeleteSnapshot(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot %d: %w", id, err)
	}
	return nil
}

// Transaction operations

// InsertTransaction records the start of a transaction.
func (s *Store) InsertTransaction(txn *Transaction) error {
	query := `
		INSERT INTO transactions (id, component, started_at, outcome, snapshot_id)
		VALUES (?, ?, ?, ?, ?)
	`

	var snapID interface{}
	if txn.SnapshotID != 0 {
		snapID = txn.SnapshotID
	}

	_, err := s.db.Exec(query, txn.ID, txn.Component,
		txn.StartedAt.Format(time.RFC3339), txn.Outcome, snapID)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// FinishTransaction records a transaction's outcome and finish time, and
// attaches the snapshot it captured, if any.
func (s *Store) FinishTransaction(id, outcome string, snapshotID int64, finishedAt time.Time) error {
	var snapID interface{}
	if snapshotID != 0 {
		snapID = snapshotID
	}

	query := `UPDATE transactions SET outcome = ?, finished_at = ?, snapshot_id = ? WHERE id = ?`
	if _, err := s.db.Exec(query, outcome, finishedAt.Format(time.RFC3339), snapID, id); err != nil {
		return fmt.Errorf("failed to finish transaction %s: %w", id, err)
	}
	return nil
}

// ListTransactions returns the most recent transactions, newest first.
func (s *Store) ListTransactions(limit int) ([]*Transaction, error) {
	query := `
		SELECT id, component, started_at, finished_at, outcome, snapshot_id
		FROM transactions
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*Transaction
	for rows.Next() {
		var txn Transaction
		var startedAt string
		var finishedAt, outcome sql.NullString
		var snapID sql.NullInt64

		if err := rows.Scan(&txn.ID, &txn.Component, &startedAt, &finishedAt, &outcome, &snapID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		txn.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at for %s: %w", txn.ID, err)
		}
		if finishedAt.Valid {
			txn.FinishedAt, err = time.Parse(time.RFC3339, finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse finished_at for %s: %w", txn.ID, err)
			}
		}
		txn.Outcome = outcome.String
		txn.SnapshotID = snapID.Int64

		txns = append(txns, &txn)
	}
	return txns, rows.Err()
}

// InsertStepResult records the outcome of one mutation step.
func (s *Store) InsertStepResult(r *StepResult) error {
	query := `
		INSERT INTO step_results (txn_id, seq, name, status, duration_ms, output)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, r.TxnID, r.Seq, r.Name, r.Status, r.DurationMS, r.Output)
	if err != nil {
		return fmt.Errorf("failed to insert step result %s/%s: %w", r.TxnID, r.Name, err)
	}
	return nil
}

// GetStepResults returns the step results for a transaction in execution
// order.
func (s *Store) GetStepResults(txnID string) ([]*StepResult, error) {
	query := `
		SELECT txn_id, seq, name, status, duration_ms, output
		FROM step_results
		WHERE txn_id = ?
		ORDER BY seq
	`

	rows, err := s.db.Query(query, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step results: %w", err)
	}
	defer rows.Close()

	var results []*StepResult
	for rows.Next() {
		var r StepResult
		if err := rows.Scan(&r.TxnID, &r.Seq, &r.Name, &r.Status, &r.DurationMS, &r.Output); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// InsertCheckResult records the outcome of one verification check.
func (s *Store) InsertCheckResult(r *CheckResult) error {
	query := `
		INSERT INTO check_results (txn_id, name, passed, detail)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, r.TxnID, r.Name, r.Passed, r.Detail)
	if err != nil {
		return fmt.Errorf("failed to insert check result %s/%s: %w", r.TxnID, r.Name, err)
	}
	return nil
}

// GetCheckResults returns the verification results for a transaction.
func (s *Store) GetCheckResults(txnID string) ([]*CheckResult, error) {
	query := `
		SELECT txn_id, name, passed, detail
		FROM check_results
		WHERE txn_id = ?
	`

	rows, err := s.db.Query(query, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check results: %w", err)
	}
	defer rows.Close()

	var results []*CheckResult
	for rows.Next() {
		var r CheckResult
		if err := rows.Scan(&r.TxnID, &r.Name, &r.Passed, &r.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for snapshot scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var snap Snapshot
	var createdAt string
	var reason sql.NullString

	err := row.Scan(&snap.ID, &createdAt, &snap.Component, &reason,
		&snap.FileCount, &snap.TotalBytes, &snap.Dir, &snap.Disposed)
	if err != nil {
		return nil, err
	}

	snap.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	snap.Reason = reason.String

	return &snap, nil
}
