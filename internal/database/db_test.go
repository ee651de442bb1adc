package database

import (
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v < 1 {
		t.Errorf("schema version = %d, want >= 1", v)
	}

	// Migrations are idempotent.
	if err := RunMigrations(db); err != nil {
		t.Fatalf("re-run migrations: %v", err)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var on int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&on); err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}

func TestPendingConfirmationsOnePerPhone(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO user_profiles (phone) VALUES ('+100')`); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	insert := `INSERT INTO pending_confirmations (phone, user_id, detected_exercise, video_ref, created_at, expires_at)
	           VALUES ('+100', 1, 'squat', 'v1', 0, 1)`
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Error("second pending confirmation for the same phone should violate the primary key")
	}
}
