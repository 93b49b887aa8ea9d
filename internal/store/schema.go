package store

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    component TEXT NOT NULL,
    reason TEXT,
    file_count INTEGER NOT NULL,
    total_bytes INTEGER NOT NULL,
    dir TEXT NOT NULL,
    disposed BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshot_files (
    snapshot_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    sha256 TEXT,
    absent BOOLEAN NOT NULL,
    PRIMARY KEY (snapshot_id, path),
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    component TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    outcome TEXT,
    snapshot_id INTEGER,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
);

CREATE TABLE IF NOT EXISTS step_results (
    txn_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    output TEXT,
    PRIMARY KEY (txn_id, seq),
    FOREIGN KEY (txn_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS check_results (
    txn_id TEXT NOT NULL,
    name TEXT NOT NULL,
    passed BOOLEAN NOT NULL,
    detail TEXT,
    FOREIGN KEY (txn_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshots_component ON snapshots(component);
CREATE INDEX IF NOT EXISTS idx_transactions_started ON transactions(started_at);
CREATE INDEX IF NOT EXISTS idx_check_results_txn ON check_results(txn_id);
`
