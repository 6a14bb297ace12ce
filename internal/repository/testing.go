package repository

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/lewtec/imgflare/internal/database"
)

// SetupTestDB creates a migrated in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.MemoryDSN)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if _, err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// MustExec executes a SQL statement and fails the test if it errors
func MustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("failed to exec query: %v", err)
	}
}

// CountRows returns the number of rows in the images table
func CountRows(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	var count int64
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		t.Fatalf("failed to count images: %v", err)
	}
	return count
}

// StepClock returns a clock that advances by step on every call, starting at start
func StepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}
