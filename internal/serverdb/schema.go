package serverdb

// ServerSchemaVersion is the current dashboard database schema version
const ServerSchemaVersion = 3

const serverSchema = `
-- Users authenticate through a wallet provider; address is the stable identity.
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    address TEXT UNIQUE NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_login DATETIME
);

-- Verification codes for CLI pairing
CREATE TABLE IF NOT EXISTS verification_codes (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL CHECK(length(code) = 6),
    user_id TEXT,
    is_verified INTEGER NOT NULL DEFAULT 0,
    verified_at DATETIME,
    created_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL
);

-- Webpages table
CREATE TABLE IF NOT EXISTS webpages (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    domain TEXT NOT NULL,
    cid TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, domain)
);

-- Deployments table
CREATE TABLE IF NOT EXISTS deployments (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    webpage_id TEXT NOT NULL,
    transaction_hash TEXT NOT NULL DEFAULT '',
    deployment_url TEXT NOT NULL,
    filecoin_info TEXT NOT NULL DEFAULT '',
    deployed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (webpage_id) REFERENCES webpages(id) ON DELETE CASCADE
);

-- Schema info table
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_verification_codes_code ON verification_codes(code, is_verified);
CREATE INDEX IF NOT EXISTS idx_verification_codes_cleanup ON verification_codes(is_verified, expires_at);
CREATE INDEX IF NOT EXISTS idx_webpages_user ON webpages(user_id);
CREATE INDEX IF NOT EXISTS idx_deployments_user ON deployments(user_id, deployed_at);
`

// Migration defines a dashboard database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all dashboard database migrations in order
var Migrations = []Migration{
	// Version 1 is the initial schema - no migration needed
	{
		Version:     2,
		Description: "Add pairing_events audit table",
		SQL: `CREATE TABLE IF NOT EXISTS pairing_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pairing_events_code ON pairing_events(code_id);
		CREATE INDEX IF NOT EXISTS idx_pairing_events_created ON pairing_events(created_at);`,
	},
	{
		Version:     3,
		Description: "Bind a CLI session token to each pairing",
		SQL: `ALTER TABLE verification_codes ADD COLUMN session_hash TEXT NOT NULL DEFAULT '';
		CREATE INDEX IF NOT EXISTS idx_verification_codes_session ON verification_codes(session_hash);`,
	},
}
