package artifact

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sketchlab/internal/pipeline"
	"sketchlab/internal/repository"
	"sketchlab/internal/storage"
)

// Transform rotates or flips a stored image. The new raster, its
// regenerated thumbnail and the folded orientation of every annotation are
// committed together; readers see either the old state or the new one.
func (s *Service) Transform(ctx context.Context, id int64, op pipeline.Transformation) (*Image, error) {
	return s.transform(ctx, op, func(q *repository.Queries) (repository.Image, error) {
		return q.GetImage(ctx, id)
	})
}

// TransformAvatar is Transform for owner's avatar.
func (s *Service) TransformAvatar(ctx context.Context, owner uuid.UUID, op pipeline.Transformation) (*Image, error) {
	return s.transform(ctx, op, func(q *repository.Queries) (repository.Image, error) {
		return q.GetAvatarByOwner(ctx, owner.String())
	})
}

func (s *Service) transform(
	ctx context.Context,
	op pipeline.Transformation,
	load func(q *repository.Queries) (repository.Image, error),
) (*Image, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrUnknownTransformation, op)
	}

	var (
		previous *Image
		row      repository.Image
		written  *storage.Cleanup
		folded   int
	)
	err := s.repo.InTx(ctx, func(q *repository.Queries) error {
		current, err := load(q)
		if err != nil {
			return err
		}
		if previous, err = imageFromRow(current); err != nil {
			return err
		}

		r, err := s.renderTransformed(previous, op)
		if err != nil {
			return err
		}

		if folded, err = foldAnnotations(ctx, q, previous.ID, op); err != nil {
			return err
		}

		n, err := q.UpdateImageContent(ctx, repository.UpdateImageContentParams{
			MimeType:     r.format.MimeType(),
			Width:        int64(r.width),
			Height:       int64(r.height),
			SizeBytes:    int64(len(r.primary)),
			HasThumbnail: r.thumbnail != nil,
			ID:           previous.ID,
			Version:      previous.Version,
		})
		if err != nil {
			return fmt.Errorf("update image record: %w", err)
		}
		if n == 0 {
			return ErrConflict
		}

		written, err = s.store.WriteAll(s.blobs(previous.Kind, previous.ID, previous.Version+1, r)...)
		if err != nil {
			return err
		}
		row, err = q.GetImage(ctx, previous.ID)
		return err
	})
	if err != nil {
		s.rollback(written)
		return nil, err
	}

	s.removeSuperseded(previous)

	img, err := imageFromRow(row)
	if err != nil {
		return nil, err
	}
	s.log.Info("image transformed",
		zap.Int64("image_id", img.ID),
		zap.Stringer("transformation", op),
		zap.Int64("version", img.Version),
		zap.Int("annotations", folded))
	if s.metrics != nil {
		_ = s.metrics.LogTransform(ctx, img.ID)
	}
	return img, nil
}

// renderTransformed applies op to the stored primary of img. The result
// keeps the stored format; the thumbnail is rebuilt from the new raster.
func (s *Service) renderTransformed(img *Image, op pipeline.Transformation) (*rendition, error) {
	data, err := s.store.Read(s.primaryPath(img))
	if err != nil {
		return nil, fmt.Errorf("read image %d: %w", img.ID, err)
	}
	src, err := pipeline.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode stored image %d: %w", img.ID, err)
	}
	out, err := pipeline.Apply(src, op)
	if err != nil {
		return nil, err
	}
	primary, err := pipeline.Encode(out, img.Format)
	if err != nil {
		return nil, err
	}

	r := &rendition{
		format:  img.Format,
		primary: primary,
		width:   out.Width(),
		height:  out.Height(),
	}
	if img.HasThumbnail {
		if r.thumbnail, err = pipeline.CreateThumbnail(out); err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
	}
	return r, nil
}

// foldAnnotations applies op to the orientation of every annotation on
// imageID and returns how many were updated.
func foldAnnotations(ctx context.Context, q *repository.Queries, imageID int64, op pipeline.Transformation) (int, error) {
	annotations, err := q.ListAnnotationsByImage(ctx, imageID)
	if err != nil {
		return 0, fmt.Errorf("list annotations: %w", err)
	}
	for _, a := range annotations {
		next := annotationState(a).Next(op).Axes()
		err := q.UpdateAnnotationOrientation(ctx, repository.UpdateAnnotationOrientationParams{
			InvertX: next.InvertX,
			InvertY: next.InvertY,
			FlipXY:  next.SwapAxes,
			ID:      a.ID,
		})
		if err != nil {
			return 0, fmt.Errorf("update annotation %d: %w", a.ID, err)
		}
	}
	return len(annotations), nil
}

func annotationState(a repository.Annotation) pipeline.OrientationState {
	return pipeline.StateOf(pipeline.Axes{InvertX: a.InvertX, InvertY: a.InvertY, SwapAxes: a.FlipXY})
}
