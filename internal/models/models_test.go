package models

import (
	"context"
	"database/sql"
	"testing"

	"github.com/carpenike/repcoach/internal/database"
)

// testDB creates a fresh in-memory SQLite database with migrations applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testProfile creates a bare profile for phone and returns it.
func testProfile(t testing.TB, db *sql.DB, phone string) *UserProfile {
	t.Helper()

	p, _, err := EnsureUserProfile(context.Background(), db, phone)
	if err != nil {
		t.Fatalf("ensure profile %s: %v", phone, err)
	}
	return p
}
