package store

const schema = `
-- Every ingested output identifier, recorded once
CREATE TABLE IF NOT EXISTS transactions (
    id               TEXT PRIMARY KEY,
    node_name        TEXT NOT NULL,
    milestone_index  INTEGER NOT NULL,
    timestamp        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_node_ts ON transactions(node_name, timestamp);

-- Running total of ingested transactions per node
CREATE TABLE IF NOT EXISTS counters (
    node_name  TEXT PRIMARY KEY,
    count      INTEGER NOT NULL DEFAULT 0
);

-- Mutable health snapshot, one row per node
CREATE TABLE IF NOT EXISTS node_metrics (
    node_name         TEXT PRIMARY KEY,
    last_seen         INTEGER NOT NULL,
    uptime_seconds    INTEGER NOT NULL DEFAULT 0,
    avg_latency       REAL NOT NULL DEFAULT 0,
    latest_milestone  INTEGER NOT NULL DEFAULT 0
);

-- Append-only reward history
CREATE TABLE IF NOT EXISTS rewards (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    node_name      TEXT NOT NULL,
    reward_amount  REAL NOT NULL,
    reason         TEXT NOT NULL,
    timestamp      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rewards_ts ON rewards(timestamp);

-- Cumulative reward per node
CREATE TABLE IF NOT EXISTS reward_balance (
    node_name  TEXT PRIMARY KEY,
    balance    REAL NOT NULL DEFAULT 0
);

-- Alert log (30d retention)
CREATE TABLE IF NOT EXISTS alert_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          INTEGER NOT NULL,
    alert_type  TEXT    NOT NULL,
    node_name   TEXT    NOT NULL DEFAULT '',
    message     TEXT    NOT NULL,
    severity    TEXT    NOT NULL,
    resolved    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_alert_ts ON alert_log(ts);
`
