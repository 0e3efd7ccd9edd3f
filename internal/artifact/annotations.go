package artifact

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"sketchlab/internal/pipeline"
	"sketchlab/internal/repository"
)

// Annotation is a drawing overlay on an image. Lines are stored in the
// coordinate frame of the image as it was when the annotation was made;
// Orientation says how that frame maps onto the current pixels.
type Annotation struct {
	ID          int64
	ImageID     int64
	Lines       json.RawMessage
	Comment     string
	Orientation pipeline.OrientationState
	SoftDeleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func annotationFromRow(row repository.Annotation) Annotation {
	return Annotation{
		ID:          row.ID,
		ImageID:     row.ImageID,
		Lines:       json.RawMessage(row.Lines),
		Comment:     row.Comment,
		Orientation: annotationState(row),
		SoftDeleted: row.SoftDeleted,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// AddAnnotation attaches a new overlay to imageID. It starts upright: the
// image's current pixels are its frame.
func (s *Service) AddAnnotation(ctx context.Context, imageID int64, lines json.RawMessage, comment string) (*Annotation, error) {
	lines = json.RawMessage(strings.TrimSpace(string(lines)))
	if len(lines) == 0 && strings.TrimSpace(comment) == "" {
		return nil, ErrEmptyDrawing
	}
	if len(lines) == 0 {
		lines = json.RawMessage("[]")
	}
	if !json.Valid(lines) {
		return nil, ErrInvalidDrawing
	}

	var row repository.Annotation
	err := s.repo.InTx(ctx, func(q *repository.Queries) error {
		if _, err := q.GetImage(ctx, imageID); err != nil {
			return err
		}
		upright := pipeline.Rot0.Axes()
		var err error
		row, err = q.CreateAnnotation(ctx, repository.CreateAnnotationParams{
			ImageID: imageID,
			Lines:   string(lines),
			Comment: comment,
			InvertX: upright.InvertX,
			InvertY: upright.InvertY,
			FlipXY:  upright.SwapAxes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("annotation added", zap.Int64("image_id", imageID), zap.Int64("annotation_id", row.ID))
	a := annotationFromRow(row)
	return &a, nil
}

// Annotations lists the overlays of imageID, oldest first. Soft-deleted
// overlays are only included when includeDeleted is set.
func (s *Service) Annotations(ctx context.Context, imageID int64, includeDeleted bool) ([]Annotation, error) {
	q := s.repo.Queries()
	if _, err := q.GetImage(ctx, imageID); err != nil {
		return nil, err
	}
	rows, err := q.ListAnnotationsByImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	out := make([]Annotation, 0, len(rows))
	for _, row := range rows {
		if row.SoftDeleted && !includeDeleted {
			continue
		}
		out = append(out, annotationFromRow(row))
	}
	return out, nil
}

// Annotation returns one overlay of imageID. A soft-deleted overlay reads as
// ErrNotFound unless includeDeleted is set.
func (s *Service) Annotation(ctx context.Context, imageID, annotationID int64, includeDeleted bool) (*Annotation, error) {
	row, err := s.repo.Queries().GetAnnotation(ctx, imageID, annotationID)
	if err != nil {
		return nil, err
	}
	if row.SoftDeleted && !includeDeleted {
		return nil, ErrNotFound
	}
	a := annotationFromRow(row)
	return &a, nil
}

// AnnotationChanges is a partial edit. Nil fields keep their stored value;
// empty or null Lines count as absent.
type AnnotationChanges struct {
	Lines       json.RawMessage
	Comment     *string
	SoftDeleted *bool
}

// UpdateAnnotation edits the drawing, comment or visibility of an overlay.
// The orientation is owned by image transforms and stays as it is, so the
// new lines are read in the frame the overlay is already folded into.
func (s *Service) UpdateAnnotation(ctx context.Context, imageID, annotationID int64, changes AnnotationChanges) (*Annotation, error) {
	lines := json.RawMessage(strings.TrimSpace(string(changes.Lines)))
	if string(lines) == "null" {
		lines = nil
	}
	if len(lines) == 0 && changes.Comment == nil && changes.SoftDeleted == nil {
		return nil, ErrNoChanges
	}
	if len(lines) > 0 && !json.Valid(lines) {
		return nil, ErrInvalidDrawing
	}

	var row repository.Annotation
	err := s.repo.InTx(ctx, func(q *repository.Queries) error {
		current, err := q.GetAnnotation(ctx, imageID, annotationID)
		if err != nil {
			return err
		}
		params := repository.UpdateAnnotationParams{
			ID:          current.ID,
			ImageID:     current.ImageID,
			Lines:       current.Lines,
			Comment:     current.Comment,
			SoftDeleted: current.SoftDeleted,
		}
		if len(lines) > 0 {
			params.Lines = string(lines)
		}
		if changes.Comment != nil {
			params.Comment = *changes.Comment
		}
		if changes.SoftDeleted != nil {
			params.SoftDeleted = *changes.SoftDeleted
		}

		n, err := q.UpdateAnnotation(ctx, params)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		row, err = q.GetAnnotation(ctx, imageID, annotationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("annotation updated",
		zap.Int64("image_id", imageID),
		zap.Int64("annotation_id", annotationID),
		zap.Bool("soft_deleted", row.SoftDeleted))
	a := annotationFromRow(row)
	return &a, nil
}

// DeleteAnnotation removes one overlay from imageID.
func (s *Service) DeleteAnnotation(ctx context.Context, imageID, annotationID int64) error {
	n, err := s.repo.Queries().DeleteAnnotation(ctx, imageID, annotationID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
