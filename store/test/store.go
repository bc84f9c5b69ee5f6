package test

import (
	"context"
	"os"
	"testing"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/store"
	"github.com/hrygo/conceptlens/store/db"
)

// NewTestingStore opens a migrated store for the driver named by DRIVER.
// SQLite runs in memory; postgres needs POSTGRES_TEST_DSN and is skipped without it.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(t)
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	ts := store.New(driver, p)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	p := &profile.Profile{
		Mode:   "dev",
		Driver: getDriverFromEnv(),
	}
	switch p.Driver {
	case "postgres":
		p.DSN = os.Getenv("POSTGRES_TEST_DSN")
		if p.DSN == "" {
			t.Skip("POSTGRES_TEST_DSN is not set")
		}
	default:
		p.DSN = ":memory:"
	}
	return p
}

func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}
