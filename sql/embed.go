// Package sql holds the embedded SQLite schema migrations.
package sql

import "embed"

// MigrationsFS contains schema/NNN_*.sql, applied in numeric order.
//
//go:embed schema/*.sql
var MigrationsFS embed.FS
