package store

// SQL schema constants for all netdiscover tables.

const schemaAssets = `
CREATE TABLE IF NOT EXISTS assets (
    id TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    ip_address TEXT NOT NULL DEFAULT '',
    hostname TEXT NOT NULL DEFAULT '',
    working_user TEXT NOT NULL DEFAULT '',
    domain TEXT NOT NULL DEFAULT '',
    device_type TEXT NOT NULL DEFAULT 'unknown',
    device_infra TEXT NOT NULL DEFAULT '',
    os_name TEXT NOT NULL DEFAULT '',
    os_version TEXT NOT NULL DEFAULT '',
    os_build TEXT NOT NULL DEFAULT '',
    manufacturer TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    system_sku TEXT NOT NULL DEFAULT '',
    serial_number TEXT NOT NULL DEFAULT '',
    asset_tag TEXT NOT NULL DEFAULT '',
    processor TEXT NOT NULL DEFAULT '',
    cpu_cores INTEGER NOT NULL DEFAULT 0,
    cpu_logical INTEGER NOT NULL DEFAULT 0,
    installed_ram_gb INTEGER NOT NULL DEFAULT 0,
    storage TEXT NOT NULL DEFAULT '',
    active_gpu TEXT NOT NULL DEFAULT '',
    connected_screens TEXT NOT NULL DEFAULT '',
    mac_addresses TEXT NOT NULL DEFAULT '', -- comma-separated, primary first
    open_ports TEXT NOT NULL DEFAULT '',    -- comma-separated, sorted
    collection_method TEXT NOT NULL DEFAULT '',
    collection_timestamp TEXT NOT NULL,
    last_seen TEXT NOT NULL,
    first_seen TEXT NOT NULL,
    data_source TEXT NOT NULL DEFAULT '',
    quality_score INTEGER NOT NULL DEFAULT 0,
    validation_errors TEXT NOT NULL DEFAULT '',
    errors TEXT NOT NULL DEFAULT '',
    archived INTEGER NOT NULL DEFAULT 0,
    archived_reason TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assets_fingerprint ON assets(fingerprint);
CREATE INDEX IF NOT EXISTS idx_assets_serial ON assets(serial_number);
CREATE INDEX IF NOT EXISTS idx_assets_ip ON assets(ip_address);
CREATE INDEX IF NOT EXISTS idx_assets_hostname ON assets(hostname);
`

const schemaAssetHistory = `
CREATE TABLE IF NOT EXISTS asset_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id TEXT NOT NULL,
    snapshot_json TEXT NOT NULL,
    recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_asset ON asset_history(asset_id);
`

const schemaDuplicateResolutionLog = `
CREATE TABLE IF NOT EXISTS duplicate_resolution_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    score REAL NOT NULL DEFAULT 0.0,
    needs_review INTEGER NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resolution_asset ON duplicate_resolution_log(asset_id);
CREATE INDEX IF NOT EXISTS idx_resolution_review ON duplicate_resolution_log(needs_review);
`

const schemaScanRuns = `
CREATE TABLE IF NOT EXISTS scan_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    targets_expanded INTEGER NOT NULL DEFAULT 0,
    alive_count INTEGER NOT NULL DEFAULT 0,
    classified_count INTEGER NOT NULL DEFAULT 0,
    collected_count INTEGER NOT NULL DEFAULT 0,
    reconciled_count INTEGER NOT NULL DEFAULT 0,
    dropped_unreachable INTEGER NOT NULL DEFAULT 0,
    retry_count INTEGER NOT NULL DEFAULT 0,
    exit_code INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at);
`

const schemaScanBudgets = `
CREATE TABLE IF NOT EXISTS scan_budgets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    period TEXT NOT NULL,
    period_start TEXT NOT NULL,
    endpoints_scanned INTEGER NOT NULL DEFAULT 0,
    endpoint_limit INTEGER NOT NULL DEFAULT 0,
    last_updated TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_budgets_period ON scan_budgets(period, period_start);
`

const schemaRedactionLog = `
CREATE TABLE IF NOT EXISTS redaction_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    field_path TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_redaction_asset ON redaction_log(asset_id);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas is the ordered list of schema DDL statements that form
// the initial (version-1) database layout.
var allSchemas = []string{
	schemaAssets,
	schemaAssetHistory,
	schemaDuplicateResolutionLog,
	schemaScanRuns,
	schemaScanBudgets,
	schemaRedactionLog,
	schemaMigrations,
}
