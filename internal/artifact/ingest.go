package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sketchlab/internal/pipeline"
	"sketchlab/internal/repository"
	"sketchlab/internal/storage"
)

// rendition is an encoded primary blob plus its optional thumbnail.
type rendition struct {
	format    pipeline.ImageFormat
	primary   []byte
	thumbnail []byte
	width     int
	height    int
}

// render prepares the stored blobs for an upload. The thumbnail is derived
// from the capped primary as it will be stored, not from the raw upload.
func render(kind Kind, format pipeline.ImageFormat, src *pipeline.Raster) (*rendition, error) {
	var (
		primary []byte
		err     error
	)
	if kind == KindAvatar {
		format = pipeline.AvatarFormat
		primary, err = pipeline.CreateAvatar(src)
	} else {
		primary, err = pipeline.CapSubmission(src, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}

	stored, err := pipeline.Decode(primary)
	if err != nil {
		return nil, fmt.Errorf("decode stored %s: %w", kind, err)
	}

	r := &rendition{
		format:  format,
		primary: primary,
		width:   stored.Width(),
		height:  stored.Height(),
	}
	if kind.HasThumbnail() {
		if r.thumbnail, err = pipeline.CreateThumbnail(stored); err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
	}
	return r, nil
}

func (s *Service) blobs(kind Kind, id, version int64, r *rendition) []storage.Blob {
	blobs := []storage.Blob{{
		Path: s.store.ImagePath(string(kind), id, version, r.format.Extension()),
		Data: r.primary,
	}}
	if r.thumbnail != nil {
		blobs = append(blobs, storage.Blob{
			Path: s.store.ThumbnailPath(string(kind), id, version),
			Data: r.thumbnail,
		})
	}
	return blobs
}

// Ingest validates, decodes and stores an upload of the given kind.
// declaredMime is the content type the client sent for the file.
func (s *Service) Ingest(ctx context.Context, kind Kind, declaredMime string, data []byte) (*Image, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	format, err := pipeline.ValidateMime(declaredMime)
	if err != nil {
		return nil, err
	}
	src, err := pipeline.Decode(data)
	if err != nil {
		return nil, err
	}
	r, err := render(kind, format, src)
	if err != nil {
		return nil, err
	}

	var (
		row     repository.Image
		written *storage.Cleanup
	)
	err = s.repo.InTx(ctx, func(q *repository.Queries) error {
		row, err = q.CreateImage(ctx, repository.CreateImageParams{
			Kind:         string(kind),
			MimeType:     r.format.MimeType(),
			Width:        int64(r.width),
			Height:       int64(r.height),
			SizeBytes:    int64(len(r.primary)),
			HasThumbnail: r.thumbnail != nil,
		})
		if err != nil {
			return fmt.Errorf("create image record: %w", err)
		}
		written, err = s.store.WriteAll(s.blobs(kind, row.ID, row.Version, r)...)
		return err
	})
	if err != nil {
		s.rollback(written)
		return nil, err
	}

	img, err := imageFromRow(row)
	if err != nil {
		return nil, err
	}
	s.log.Info("image stored",
		zap.Int64("image_id", img.ID),
		zap.String("kind", string(kind)),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int64("size_bytes", img.SizeBytes))
	s.logUpload(ctx, img.ID)
	return img, nil
}

// IngestAvatar stores owner's avatar, replacing the previous one.
func (s *Service) IngestAvatar(ctx context.Context, owner uuid.UUID, declaredMime string, data []byte) (*Image, error) {
	if owner == uuid.Nil {
		return nil, ErrInvalidOwner
	}
	if _, err := pipeline.ValidateMime(declaredMime); err != nil {
		return nil, err
	}
	src, err := pipeline.Decode(data)
	if err != nil {
		return nil, err
	}
	r, err := render(KindAvatar, pipeline.AvatarFormat, src)
	if err != nil {
		return nil, err
	}

	var (
		row      repository.Image
		previous *Image
		written  *storage.Cleanup
	)
	err = s.repo.InTx(ctx, func(q *repository.Queries) error {
		existing, err := q.GetAvatarByOwner(ctx, owner.String())
		switch {
		case errors.Is(err, repository.ErrNotFound):
			row, err = q.CreateImage(ctx, repository.CreateImageParams{
				Kind:      string(KindAvatar),
				OwnerID:   sql.NullString{String: owner.String(), Valid: true},
				MimeType:  r.format.MimeType(),
				Width:     int64(r.width),
				Height:    int64(r.height),
				SizeBytes: int64(len(r.primary)),
			})
			if err != nil {
				return fmt.Errorf("create avatar record: %w", err)
			}
		case err != nil:
			return err
		default:
			if previous, err = imageFromRow(existing); err != nil {
				return err
			}
			n, err := q.UpdateImageContent(ctx, repository.UpdateImageContentParams{
				MimeType:  r.format.MimeType(),
				Width:     int64(r.width),
				Height:    int64(r.height),
				SizeBytes: int64(len(r.primary)),
				ID:        existing.ID,
				Version:   existing.Version,
			})
			if err != nil {
				return fmt.Errorf("update avatar record: %w", err)
			}
			if n == 0 {
				return ErrConflict
			}
			if row, err = q.GetImage(ctx, existing.ID); err != nil {
				return err
			}
		}
		written, err = s.store.WriteAll(s.blobs(KindAvatar, row.ID, row.Version, r)...)
		return err
	})
	if err != nil {
		s.rollback(written)
		return nil, err
	}

	if previous != nil {
		s.removeSuperseded(previous)
	}
	img, err := imageFromRow(row)
	if err != nil {
		return nil, err
	}
	s.log.Info("avatar stored",
		zap.Int64("image_id", img.ID),
		zap.String("owner_id", img.OwnerID),
		zap.Int64("version", img.Version))
	s.logUpload(ctx, img.ID)
	return img, nil
}

// Avatar returns the metadata of owner's avatar.
func (s *Service) Avatar(ctx context.Context, owner uuid.UUID) (*Image, error) {
	row, err := s.repo.Queries().GetAvatarByOwner(ctx, owner.String())
	if err != nil {
		return nil, err
	}
	return imageFromRow(row)
}

// OpenAvatar returns owner's avatar with its primary blob.
func (s *Service) OpenAvatar(ctx context.Context, owner uuid.UUID) (*Image, []byte, error) {
	img, err := s.Avatar(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	img, data, err := s.readBlob(img, s.primaryPath, func() (*Image, error) { return s.Avatar(ctx, owner) })
	if err != nil {
		return nil, nil, fmt.Errorf("read avatar of %s: %w", owner, err)
	}
	return img, data, nil
}

// DeleteAvatar removes owner's avatar and its blobs.
func (s *Service) DeleteAvatar(ctx context.Context, owner uuid.UUID) error {
	if owner == uuid.Nil {
		return ErrInvalidOwner
	}
	return s.delete(ctx, func(q *repository.Queries) (repository.Image, error) {
		return q.GetAvatarByOwner(ctx, owner.String())
	})
}

func (s *Service) logUpload(ctx context.Context, id int64) {
	if s.metrics == nil {
		return
	}
	// failures are logged by the recorder
	_ = s.metrics.LogUpload(ctx, id)
}
