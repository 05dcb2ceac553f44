package serverdb

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// pragmas applied to every connection. The first two must succeed.
var pragmas = []struct {
	stmt     string
	required bool
}{
	{"PRAGMA journal_mode=WAL", true},
	{"PRAGMA busy_timeout=5000", true},
	{"PRAGMA synchronous=NORMAL", false},
	{"PRAGMA foreign_keys=ON", false},
}

// ServerDB is the dashboard store: users, pairing codes, webpages and
// deployments.
type ServerDB struct {
	conn  *sql.DB
	clock func() time.Time
}

// Open opens (creating if needed) the SQLite file at dbPath, applies the base
// schema and brings it up to ServerSchemaVersion.
func Open(dbPath string) (*ServerDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &ServerDB{conn: conn, clock: time.Now}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *ServerDB) init() error {
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p.stmt); err != nil && p.required {
			return fmt.Errorf("%s: %w", p.stmt, err)
		}
	}
	if _, err := db.conn.Exec(serverSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SetClock replaces the time source used for code expiry. Passing nil restores time.Now.
func (db *ServerDB) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	db.clock = now
}

func (db *ServerDB) now() time.Time {
	return db.clock().UTC()
}

// Now returns the store's current time in UTC. Retention cutoffs computed
// outside the store should use it so they agree with code expiry.
func (db *ServerDB) Now() time.Time {
	return db.now()
}

// Ping checks the database connection is alive.
func (db *ServerDB) Ping() error {
	return db.conn.Ping()
}

// Close checkpoints the WAL and closes the database connection.
func (db *ServerDB) Close() error {
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

// RunMigrations applies every migration newer than the stored schema version
// and reports how many ran. Each migration commits together with its version
// bump.
func (db *ServerDB) RunMigrations() (int, error) {
	current := db.schemaVersion()
	ran := 0
	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := db.apply(m); err != nil {
			return ran, fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		current = m.Version
		ran++
	}
	if current < ServerSchemaVersion {
		if err := setSchemaVersion(db.conn, ServerSchemaVersion); err != nil {
			return ran, err
		}
	}
	return ran, nil
}

func (db *ServerDB) apply(m Migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if err := setSchemaVersion(tx, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

// schemaVersion returns the stored version, or 0 for a fresh database.
func (db *ServerDB) schemaVersion() int {
	var s string
	if err := db.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'version'`).Scan(&s); err != nil {
		return 0
	}
	v, _ := strconv.Atoi(s)
	return v
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setSchemaVersion(e execer, v int) error {
	_, err := e.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`, strconv.Itoa(v))
	return err
}

// generateID returns prefix followed by 16 random hex characters.
func generateID(prefix string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
