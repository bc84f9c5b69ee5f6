package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/store"
)

// ============================================================================
// SQLITE SUPPORT (Development / Testing)
// ============================================================================
// Embeddings are stored as JSON text and compared in process; there is no
// vector index. For large corpora use PostgreSQL with pgvector.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a SQLite database. A DSN of ":memory:" opens a private
// in-memory database.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	inMemory := strings.Contains(profile.DSN, ":memory:")
	dsn := profile.DSN
	if !inMemory {
		dsn += "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	if inMemory {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'concept')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS concept (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		owner_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		title_key TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		key_points TEXT NOT NULL DEFAULT '[]',
		details TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_concept_owner_title_key ON concept (owner_id, title_key)`,
	`CREATE TABLE IF NOT EXISTS concept_embedding (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		concept_id INTEGER NOT NULL,
		embedding TEXT NOT NULL,
		model TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL,
		UNIQUE (concept_id, model)
	)`,
	`CREATE TABLE IF NOT EXISTS concept_relation (
		concept_id INTEGER NOT NULL,
		related_concept_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		strength REAL NOT NULL DEFAULT 0,
		created_ts BIGINT NOT NULL,
		UNIQUE (concept_id, related_concept_id)
	)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate schema")
		}
	}
	return nil
}
