package store

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    source TEXT,
    loaded_at TIMESTAMP NOT NULL,
    transaction_count INTEGER NOT NULL,
    item_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    dataset_id INTEGER NOT NULL,
    txn_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (dataset_id, txn_id),
    FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transaction_items (
    dataset_id INTEGER NOT NULL,
    txn_id TEXT NOT NULL,
    item TEXT NOT NULL,
    PRIMARY KEY (dataset_id, txn_id, item),
    FOREIGN KEY (dataset_id, txn_id) REFERENCES transactions(dataset_id, txn_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    dataset TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    min_support REAL NOT NULL,
    min_confidence REAL NOT NULL,
    min_lift REAL NOT NULL DEFAULT 0,
    max_len INTEGER NOT NULL DEFAULT 0,
    transaction_count INTEGER NOT NULL,
    itemset_count INTEGER NOT NULL,
    rule_count INTEGER NOT NULL,
    run_path TEXT
);

CREATE TABLE IF NOT EXISTS run_itemsets (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    items TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_rules (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    antecedent TEXT NOT NULL,
    consequent TEXT NOT NULL,
    support REAL NOT NULL,
    confidence REAL NOT NULL,
    lift REAL NOT NULL,
    leverage REAL NOT NULL,
    conviction REAL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_items_item ON transaction_items(dataset_id, item);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
`
