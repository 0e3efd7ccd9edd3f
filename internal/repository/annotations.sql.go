package repository

import (
	"context"
	"database/sql"
	"errors"
)

const annotationColumns = `id, image_id, lines, comment, invert_x, invert_y, flip_xy, soft_deleted, created_at, updated_at`

func scanAnnotation(row rowScanner) (Annotation, error) {
	var a Annotation
	err := row.Scan(
		&a.ID,
		&a.ImageID,
		&a.Lines,
		&a.Comment,
		&a.InvertX,
		&a.InvertY,
		&a.FlipXY,
		&a.SoftDeleted,
		timestamp{&a.CreatedAt},
		timestamp{&a.UpdatedAt},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

const createAnnotation = `
INSERT INTO annotations (image_id, lines, comment, invert_x, invert_y, flip_xy)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + annotationColumns

type CreateAnnotationParams struct {
	ImageID int64
	Lines   string
	Comment string
	InvertX bool
	InvertY bool
	FlipXY  bool
}

func (q *Queries) CreateAnnotation(ctx context.Context, arg CreateAnnotationParams) (Annotation, error) {
	row := q.db.QueryRowContext(ctx, createAnnotation,
		arg.ImageID,
		arg.Lines,
		arg.Comment,
		arg.InvertX,
		arg.InvertY,
		arg.FlipXY,
	)
	return scanAnnotation(row)
}

const getAnnotation = `SELECT ` + annotationColumns + ` FROM annotations WHERE id = ? AND image_id = ?`

func (q *Queries) GetAnnotation(ctx context.Context, imageID, id int64) (Annotation, error) {
	return scanAnnotation(q.db.QueryRowContext(ctx, getAnnotation, id, imageID))
}

const listAnnotationsByImage = `SELECT ` + annotationColumns + ` FROM annotations WHERE image_id = ? ORDER BY id`

func (q *Queries) ListAnnotationsByImage(ctx context.Context, imageID int64) ([]Annotation, error) {
	rows, err := q.db.QueryContext(ctx, listAnnotationsByImage, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateAnnotationOrientation = `
UPDATE annotations
SET invert_x = ?, invert_y = ?, flip_xy = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateAnnotationOrientationParams struct {
	InvertX bool
	InvertY bool
	FlipXY  bool
	ID      int64
}

func (q *Queries) UpdateAnnotationOrientation(ctx context.Context, arg UpdateAnnotationOrientationParams) error {
	_, err := q.db.ExecContext(ctx, updateAnnotationOrientation,
		arg.InvertX,
		arg.InvertY,
		arg.FlipXY,
		arg.ID,
	)
	return err
}

const updateAnnotation = `
UPDATE annotations
SET lines = ?, comment = ?, soft_deleted = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND image_id = ?`

// UpdateAnnotationParams carries the user-editable columns. The orientation
// flags belong to the image transform path and are never written here.
type UpdateAnnotationParams struct {
	Lines       string
	Comment     string
	SoftDeleted bool
	ID          int64
	ImageID     int64
}

func (q *Queries) UpdateAnnotation(ctx context.Context, arg UpdateAnnotationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateAnnotation,
		arg.Lines,
		arg.Comment,
		arg.SoftDeleted,
		arg.ID,
		arg.ImageID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAnnotation = `DELETE FROM annotations WHERE id = ? AND image_id = ?`

func (q *Queries) DeleteAnnotation(ctx context.Context, imageID, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAnnotation, id, imageID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
