package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"sketchlab/internal/repository"
)

// CreateTestImage inserts an image row without any blob behind it.
func CreateTestImage(t *testing.T, q *repository.Queries, kind string) repository.Image {
	t.Helper()

	img, err := q.CreateImage(context.Background(), repository.CreateImageParams{
		Kind:         kind,
		MimeType:     "image/png",
		Width:        640,
		Height:       480,
		SizeBytes:    1024,
		HasThumbnail: kind == repository.KindSubmission || kind == repository.KindExample,
	})
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	return img
}

// CreateTestAnnotation attaches an upright annotation to imageID.
func CreateTestAnnotation(t *testing.T, q *repository.Queries, imageID int64, comment string) repository.Annotation {
	t.Helper()

	a, err := q.CreateAnnotation(context.Background(), repository.CreateAnnotationParams{
		ImageID: imageID,
		Lines:   `[[{"x":0.1,"y":0.2},{"x":0.3,"y":0.4}]]`,
		Comment: comment,
	})
	if err != nil {
		t.Fatalf("failed to create test annotation: %v", err)
	}
	return a
}

// CreateTestEvent records an activity event at the given time.
func CreateTestEvent(t *testing.T, q *repository.Queries, eventType string, at time.Time) {
	t.Helper()

	err := q.CreateActivityEvent(context.Background(), repository.CreateActivityEventParams{
		EventType: eventType,
		ImageID:   sql.NullInt64{},
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
}
