package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository bundles the database handle with its queries.
type Repository struct {
	db *sql.DB
	q  *Queries
}

// NewRepository creates a repository over db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: New(db)}
}

// Queries returns the non-transactional query set.
func (r *Repository) Queries() *Queries { return r.q }

// Ping checks DB connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// InTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (r *Repository) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.q.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
