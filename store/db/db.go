package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/store"
	"github.com/hrygo/conceptlens/store/db/postgres"
	"github.com/hrygo/conceptlens/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// PostgreSQL: production, embeddings in a pgvector column.
// SQLite: development and testing, embeddings stored as JSON text.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
