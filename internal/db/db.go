package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	sksql "sketchlab/sql"
)

// InitDB opens a SQLite database at path and applies embedded migrations.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: SQLite allows a single writer, and a transform's
	// read-modify-write must not interleave with another one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable foreign keys
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := ApplyMigrations(db, sksql.MigrationsFS); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
