package repository

import (
	"context"
	"database/sql"
	"time"
)

const createActivityEvent = `
INSERT INTO activity_events (event_type, image_id, created_at)
VALUES (?, ?, ?)`

type CreateActivityEventParams struct {
	EventType string
	ImageID   sql.NullInt64
	CreatedAt time.Time
}

func (q *Queries) CreateActivityEvent(ctx context.Context, arg CreateActivityEventParams) error {
	_, err := q.db.ExecContext(ctx, createActivityEvent, arg.EventType, arg.ImageID, formatTime(arg.CreatedAt))
	return err
}

const countEventsSince = `SELECT COUNT(*) FROM activity_events WHERE event_type = ? AND created_at >= ?`

func (q *Queries) CountEventsSince(ctx context.Context, eventType string, since time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countEventsSince, eventType, formatTime(since)).Scan(&n)
	return n, err
}

const deleteOldActivityEvents = `DELETE FROM activity_events WHERE created_at < ?`

func (q *Queries) DeleteOldActivityEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOldActivityEvents, formatTime(before))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// formatTime renders t the way CURRENT_TIMESTAMP does, so stored values
// compare correctly as text.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
