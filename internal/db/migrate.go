package db

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Migration is one numbered schema file.
type Migration struct {
	Version int
	Name    string
}

var migrationVersion = regexp.MustCompile(`^(\d+)`)

// ListMigrations returns the .sql files under schema/ in migrationsFS,
// sorted by their leading version number. Files without one are skipped.
func ListMigrations(migrationsFS fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var items []Migration
	seen := map[int]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := migrationVersion.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if prev, ok := seen[v]; ok {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", v, prev, name)
		}
		seen[v] = name
		items = append(items, Migration{Version: v, Name: name})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Version < items[j].Version })
	return items, nil
}

// ApplyMigrations applies every migration in migrationsFS that is not yet
// recorded in schema_migrations. Each file runs in its own transaction.
func ApplyMigrations(db *sql.DB, migrationsFS fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	items, err := ListMigrations(migrationsFS)
	if err != nil {
		return err
	}

	for _, it := range items {
		if applied[it.Version] {
			continue
		}
		if err := applyOne(db, migrationsFS, it); err != nil {
			return err
		}
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func applyOne(db *sql.DB, migrationsFS fs.FS, m Migration) error {
	// embedded paths always use forward slashes
	b, err := fs.ReadFile(migrationsFS, path.Join("schema", m.Name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.Name, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(string(b)); err != nil {
		tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", m.Name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES(?)`, m.Version); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Name, err)
	}
	return nil
}
