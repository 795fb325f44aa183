package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations_FreshDatabase(t *testing.T) {
	// Given: A fresh database with no tables
	db := openRaw(t)

	// When: RunMigrations is called
	applied, err := RunMigrations(context.Background(), db)
	if err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	// Then: The schema exists with every column the cache reads
	if applied < 1 {
		t.Errorf("applied = %d, want at least 1", applied)
	}
	queries := []string{
		`SELECT id, user_id, username, email, leetcode_username, daily_goal,
		        enable_daily_reminder, enable_end_of_day_summary, saved_at FROM session LIMIT 0`,
		`SELECT problem_id, status, date_completed, priority, notes, time_spent, updated_at FROM progress LIMIT 0`,
		`SELECT id, kind, target, payload, outcome, error, created_at FROM sync_log LIMIT 0`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			t.Errorf("schema missing columns: %v", err)
		}
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	// Given: A database that has already been migrated
	db := openRaw(t)
	if _, err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("first RunMigrations failed: %v", err)
	}

	// When: RunMigrations runs again
	applied, err := RunMigrations(context.Background(), db)

	// Then: Nothing is applied and nothing fails
	if err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}
	if applied != 0 {
		t.Errorf("applied = %d on second run, want 0", applied)
	}
}

func TestSchema_KeepsStatusAsReceived(t *testing.T) {
	db := openRaw(t)
	if _, err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	// The remote is authoritative, so the cache stores whatever status it sent.
	if _, err := db.Exec(`INSERT INTO progress (problem_id, status, updated_at) VALUES ('x', 'finished', 'now')`); err != nil {
		t.Errorf("insert with unrecognized status failed: %v", err)
	}
}

func TestSchema_SingleSessionRow(t *testing.T) {
	db := openRaw(t)
	if _, err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO session (id, user_id, username, saved_at) VALUES (2, 'u', 'n', 'now')`)
	if err == nil {
		t.Error("insert of a second session row succeeded, want CHECK failure")
	}
}
