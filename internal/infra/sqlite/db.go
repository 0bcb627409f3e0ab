// Package sqlite provides SQLite-based persistent storage for Cuentas.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/cuentas.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "cuentas.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			frequency   TEXT NOT NULL DEFAULT 'monthly',
			website_url TEXT,
			driver_name TEXT,
			identifiers TEXT NOT NULL DEFAULT '{}',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS payment_methods (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			name             TEXT NOT NULL,
			card_type        TEXT NOT NULL,
			last_four_digits TEXT NOT NULL,
			encrypted_data   BLOB NOT NULL,
			created_at       INTEGER NOT NULL
		)`,

		// Bills are upserted on (account_id, external_id) — the provider's
		// bill id is unique per account, not globally.
		`CREATE TABLE IF NOT EXISTS bills (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id   INTEGER NOT NULL REFERENCES accounts(id),
			external_id  TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			currency     TEXT NOT NULL DEFAULT 'ARS',
			due_date     TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'UNPAID',
			fetched_at   INTEGER NOT NULL,
			paid_at      INTEGER,
			UNIQUE(account_id, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bills_account ON bills(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bills_due ON bills(due_date)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id        INTEGER NOT NULL REFERENCES accounts(id),
			payment_method_id INTEGER REFERENCES payment_methods(id),
			bill_id           INTEGER REFERENCES bills(id),
			amount            REAL NOT NULL,
			paid_at           INTEGER NOT NULL,
			status            TEXT NOT NULL DEFAULT 'completed',
			notes             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_account ON payments(account_id)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id                TEXT PRIMARY KEY,
			type              TEXT NOT NULL,
			status            TEXT NOT NULL,
			account_id        INTEGER NOT NULL,
			bill_id           INTEGER,
			payment_method_id INTEGER,
			result            TEXT,
			error             TEXT,
			created_at        INTEGER NOT NULL,
			finished_at       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_account ON tasks(account_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
