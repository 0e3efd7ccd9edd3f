// Package artifact persists images and their derivatives. It ties the pure
// pipeline to SQLite rows and blob files: every upload and every
// rotate/flip lands as one transaction covering the raster, its thumbnail
// and the orientation of every annotation drawn on it.
package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"sketchlab/internal/metrics"
	"sketchlab/internal/pipeline"
	"sketchlab/internal/repository"
	"sketchlab/internal/storage"
)

var (
	// ErrNotFound is returned for unknown images and annotations.
	ErrNotFound = repository.ErrNotFound
	// ErrConflict means another writer changed the image between our read
	// and our write.
	ErrConflict = errors.New("image was modified concurrently")
	// ErrNoThumbnail is returned for kinds stored without a thumbnail.
	ErrNoThumbnail    = errors.New("image has no thumbnail")
	ErrInvalidKind    = errors.New("unknown image kind")
	ErrInvalidOwner   = errors.New("invalid owner id")
	ErrEmptyDrawing   = errors.New("annotation needs lines or a comment")
	ErrInvalidDrawing = errors.New("annotation lines are not valid JSON")
	ErrNoChanges      = errors.New("annotation update has no fields")
)

// IsClientError reports whether err was caused by the request.
func IsClientError(err error) bool {
	return pipeline.IsClientError(err) ||
		errors.Is(err, pipeline.ErrUnknownTransformation) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidOwner) ||
		errors.Is(err, ErrEmptyDrawing) ||
		errors.Is(err, ErrInvalidDrawing) ||
		errors.Is(err, ErrNoChanges)
}

// Kind is what an image is used for.
type Kind string

const (
	KindSubmission Kind = repository.KindSubmission
	KindExample    Kind = repository.KindExample
	KindTaskPage   Kind = repository.KindTaskPage
	KindAvatar     Kind = repository.KindAvatar
)

// ParseKind accepts the kinds that can be uploaded through Ingest. Avatars
// go through IngestAvatar.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSubmission, KindExample, KindTaskPage:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// HasThumbnail reports whether images of this kind keep a thumbnail.
func (k Kind) HasThumbnail() bool {
	return k == KindSubmission || k == KindExample
}

// Image is a stored image as seen by callers.
type Image struct {
	ID           int64
	Kind         Kind
	OwnerID      string
	Format       pipeline.ImageFormat
	Width        int
	Height       int
	SizeBytes    int64
	HasThumbnail bool
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func imageFromRow(row repository.Image) (*Image, error) {
	format, err := pipeline.ParseMimeType(row.MimeType)
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", row.ID, err)
	}
	return &Image{
		ID:           row.ID,
		Kind:         Kind(row.Kind),
		OwnerID:      row.OwnerID.String,
		Format:       format,
		Width:        int(row.Width),
		Height:       int(row.Height),
		SizeBytes:    row.SizeBytes,
		HasThumbnail: row.HasThumbnail,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// Service implements ingest, transform and annotation bookkeeping.
type Service struct {
	repo    *repository.Repository
	store   *storage.Storage
	metrics *metrics.Recorder
	log     *zap.Logger
}

type Config struct {
	DB      *sql.DB
	Storage *storage.Storage
	// Metrics is optional.
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repository.NewRepository(cfg.DB),
		store:   cfg.Storage,
		metrics: cfg.Metrics,
		log:     log.Named("artifact"),
	}
}

func (s *Service) primaryPath(img *Image) string {
	return s.store.ImagePath(string(img.Kind), img.ID, img.Version, img.Format.Extension())
}

func (s *Service) thumbnailPath(img *Image) string {
	return s.store.ThumbnailPath(string(img.Kind), img.ID, img.Version)
}

// blobPaths lists every file that backs img at its current version.
func (s *Service) blobPaths(img *Image) []string {
	paths := []string{s.primaryPath(img)}
	if img.HasThumbnail {
		paths = append(paths, s.thumbnailPath(img))
	}
	return paths
}

// removeSuperseded deletes blobs that are no longer referenced. Failures
// leave garbage for the janitor, never a broken image.
func (s *Service) removeSuperseded(img *Image) {
	if err := s.store.Remove(s.blobPaths(img)...); err != nil {
		s.log.Warn("failed to remove superseded blobs",
			zap.Int64("image_id", img.ID), zap.Int64("version", img.Version), zap.Error(err))
	}
}

// rollback removes blobs written for a transaction that did not commit.
func (s *Service) rollback(written *storage.Cleanup) {
	if written == nil {
		return
	}
	if err := written.Execute(); err != nil {
		s.log.Error("failed to remove blobs of rolled back transaction", zap.Error(err))
	}
}

// Get returns the image metadata.
func (s *Service) Get(ctx context.Context, id int64) (*Image, error) {
	row, err := s.repo.Queries().GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	return imageFromRow(row)
}

// List returns stored images oldest first. An empty kind lists every kind.
func (s *Service) List(ctx context.Context, kind Kind) ([]Image, error) {
	rows, err := s.repo.Queries().ListImages(ctx)
	if err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(rows))
	for _, row := range rows {
		if kind != "" && Kind(row.Kind) != kind {
			continue
		}
		img, err := imageFromRow(row)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, nil
}

// Open returns the image metadata with the primary blob.
func (s *Service) Open(ctx context.Context, id int64) (*Image, []byte, error) {
	img, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	img, data, err := s.readBlob(img, s.primaryPath, func() (*Image, error) { return s.Get(ctx, id) })
	if err != nil {
		return nil, nil, fmt.Errorf("read image %d: %w", id, err)
	}
	return img, data, nil
}

// Thumbnail returns the image metadata with its thumbnail blob.
func (s *Service) Thumbnail(ctx context.Context, id int64) (*Image, []byte, error) {
	img, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !img.HasThumbnail {
		return nil, nil, ErrNoThumbnail
	}
	img, data, err := s.readBlob(img, s.thumbnailPath, func() (*Image, error) { return s.Get(ctx, id) })
	if err != nil {
		return nil, nil, fmt.Errorf("read thumbnail %d: %w", id, err)
	}
	return img, data, nil
}

// readBlob reads the blob of img at the path picked by path. Blob files are
// versioned and a transform removes the old version once it commits, so a
// read racing that commit can miss. In that case the row is loaded again
// and, if it moved on, the newer blob is read once.
func (s *Service) readBlob(img *Image, path func(*Image) string, reload func() (*Image, error)) (*Image, []byte, error) {
	data, err := s.store.Read(path(img))
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return img, data, err
	}

	fresh, rerr := reload()
	if rerr != nil {
		return nil, nil, rerr
	}
	if fresh.Version == img.Version {
		return nil, nil, err
	}
	s.log.Debug("blob superseded during read, retrying",
		zap.Int64("image_id", img.ID),
		zap.Int64("stale_version", img.Version),
		zap.Int64("version", fresh.Version))
	data, err = s.store.Read(path(fresh))
	if err != nil {
		return nil, nil, err
	}
	return fresh, data, nil
}

// Delete removes an image, its annotations and all of its blobs.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, func(q *repository.Queries) (repository.Image, error) {
		return q.GetImage(ctx, id)
	})
}

func (s *Service) delete(ctx context.Context, load func(q *repository.Queries) (repository.Image, error)) error {
	var img *Image
	err := s.repo.InTx(ctx, func(q *repository.Queries) error {
		row, err := load(q)
		if err != nil {
			return err
		}
		if img, err = imageFromRow(row); err != nil {
			return err
		}
		_, err = q.DeleteImage(ctx, img.ID)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.store.RemoveImage(string(img.Kind), img.ID); err != nil {
		s.log.Warn("failed to remove image blobs", zap.Int64("image_id", img.ID), zap.Error(err))
	}
	s.log.Info("image deleted", zap.Int64("image_id", img.ID), zap.String("kind", string(img.Kind)))
	return nil
}
