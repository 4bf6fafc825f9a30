package store

const schema = `
-- Calibration runs
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    algorithm TEXT NOT NULL,
    seed INTEGER NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL DEFAULT 0,
    dates BLOB NOT NULL,
    elevations BLOB NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    rows_per_date INTEGER NOT NULL
);

-- K-means fits, one per class count
CREATE TABLE IF NOT EXISTS fits (
    k INTEGER PRIMARY KEY,
    centroids BLOB NOT NULL,
    labels BLOB NOT NULL
);

-- Flood classes selected for (k, m)
CREATE TABLE IF NOT EXISTS flood_classes (
    k INTEGER NOT NULL,
    m INTEGER NOT NULL,
    labels BLOB NOT NULL,
    FOREIGN KEY (k) REFERENCES fits(k) ON DELETE CASCADE,
    PRIMARY KEY (k, m)
);

-- Best cluster configuration, a single row
CREATE TABLE IF NOT EXISTS cluster_best (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    k INTEGER NOT NULL,
    m INTEGER NOT NULL,
    coefficient REAL NOT NULL
);

-- Best threshold per polarization with packed per-date decisions
CREATE TABLE IF NOT EXISTS threshold_best (
    polarization TEXT PRIMARY KEY,
    threshold REAL NOT NULL,
    coefficient REAL NOT NULL,
    dates BLOB NOT NULL,
    lengths BLOB NOT NULL,
    decisions BLOB NOT NULL
);

-- Every scored candidate
CREATE TABLE IF NOT EXISTS evaluations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    polarization TEXT NOT NULL,
    threshold REAL NOT NULL,
    k INTEGER NOT NULL,
    m INTEGER NOT NULL,
    coefficient REAL,
    defined BOOLEAN NOT NULL,
    areas BLOB NOT NULL,
    UNIQUE(kind, polarization, threshold, k, m)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_evaluations_kind ON evaluations(kind);
`
