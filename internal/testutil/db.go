package testutil

import (
	"database/sql"
	"testing"

	"sketchlab/internal/db"
	"sketchlab/internal/repository"
	sksql "sketchlab/sql"

	_ "modernc.org/sqlite"
)

// SetupTestDB creates an in-memory SQLite database with migrations applied.
// The database is closed when the test ends.
func SetupTestDB(t *testing.T) (*sql.DB, *repository.Queries) {
	t.Helper()

	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := db.ApplyMigrations(database, sksql.MigrationsFS); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	var count int
	err = database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('images', 'annotations', 'activity_events')").Scan(&count)
	if err != nil {
		t.Fatalf("failed to verify tables: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 tables, found %d", count)
	}

	return database, repository.New(database)
}
