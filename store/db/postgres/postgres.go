package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/store"
)

// ============================================================================
// POSTGRESQL SUPPORT (Production)
// ============================================================================
// Embeddings live in a pgvector column. They are written with pgvector-go and
// read back in their text form so that the caller decodes each row on its own.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		slog.Error("failed to ping database", "error", err)
		return nil, errors.Wrap(err, "failed to ping database")
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
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_catalog = current_database() AND table_name = 'concept' AND table_type = 'BASE TABLE')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS concept (
		id SERIAL PRIMARY KEY,
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
		id SERIAL PRIMARY KEY,
		concept_id INTEGER NOT NULL REFERENCES concept (id) ON DELETE CASCADE,
		embedding vector NOT NULL,
		model TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL,
		UNIQUE (concept_id, model)
	)`,
	`CREATE TABLE IF NOT EXISTS concept_relation (
		concept_id INTEGER NOT NULL REFERENCES concept (id) ON DELETE CASCADE,
		related_concept_id INTEGER NOT NULL REFERENCES concept (id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		strength DOUBLE PRECISION NOT NULL DEFAULT 0,
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
