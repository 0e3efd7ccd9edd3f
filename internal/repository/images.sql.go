package repository

import (
	"context"
	"database/sql"
	"errors"
)

const imageColumns = `id, kind, owner_id, mime_type, width, height, size_bytes, has_thumbnail, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImage(row rowScanner) (Image, error) {
	var i Image
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.OwnerID,
		&i.MimeType,
		&i.Width,
		&i.Height,
		&i.SizeBytes,
		&i.HasThumbnail,
		&i.Version,
		timestamp{&i.CreatedAt},
		timestamp{&i.UpdatedAt},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return i, ErrNotFound
	}
	return i, err
}

const createImage = `
INSERT INTO images (kind, owner_id, mime_type, width, height, size_bytes, has_thumbnail)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + imageColumns

type CreateImageParams struct {
	Kind         string
	OwnerID      sql.NullString
	MimeType     string
	Width        int64
	Height       int64
	SizeBytes    int64
	HasThumbnail bool
}

func (q *Queries) CreateImage(ctx context.Context, arg CreateImageParams) (Image, error) {
	row := q.db.QueryRowContext(ctx, createImage,
		arg.Kind,
		arg.OwnerID,
		arg.MimeType,
		arg.Width,
		arg.Height,
		arg.SizeBytes,
		arg.HasThumbnail,
	)
	return scanImage(row)
}

const getImage = `SELECT ` + imageColumns + ` FROM images WHERE id = ?`

func (q *Queries) GetImage(ctx context.Context, id int64) (Image, error) {
	return scanImage(q.db.QueryRowContext(ctx, getImage, id))
}

const getAvatarByOwner = `SELECT ` + imageColumns + ` FROM images WHERE kind = 'avatar' AND owner_id = ?`

func (q *Queries) GetAvatarByOwner(ctx context.Context, ownerID string) (Image, error) {
	return scanImage(q.db.QueryRowContext(ctx, getAvatarByOwner, ownerID))
}

const listImages = `SELECT ` + imageColumns + ` FROM images ORDER BY id`

// ListImages returns every stored image, oldest first.
func (q *Queries) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := q.db.QueryContext(ctx, listImages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Image
	for rows.Next() {
		i, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateImageContent = `
UPDATE images
SET mime_type = ?, width = ?, height = ?, size_bytes = ?, has_thumbnail = ?,
    version = version + 1, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND version = ?`

type UpdateImageContentParams struct {
	MimeType     string
	Width        int64
	Height       int64
	SizeBytes    int64
	HasThumbnail bool
	ID           int64
	// Version is the version the caller read; the update is a no-op when
	// another writer got there first.
	Version int64
}

// UpdateImageContent replaces the content metadata and bumps the version.
// It returns the number of rows updated: 0 means the row is gone or its
// version moved on.
func (q *Queries) UpdateImageContent(ctx context.Context, arg UpdateImageContentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateImageContent,
		arg.MimeType,
		arg.Width,
		arg.Height,
		arg.SizeBytes,
		arg.HasThumbnail,
		arg.ID,
		arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteImage = `DELETE FROM images WHERE id = ?`

func (q *Queries) DeleteImage(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteImage, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countImagesByKind = `SELECT kind, COUNT(*) FROM images GROUP BY kind`

func (q *Queries) CountImagesByKind(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, countImagesByKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int64{}
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
