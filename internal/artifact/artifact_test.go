package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchlab/internal/metrics"
	"sketchlab/internal/pipeline"
	"sketchlab/internal/storage"
	"sketchlab/internal/testutil"
)

type fixture struct {
	svc  *Service
	db   *sql.DB
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, _ := testutil.SetupTestDB(t)
	root := testutil.SetupTestStorage(t)
	svc := New(Config{
		DB:      db,
		Storage: storage.New(root),
		Metrics: metrics.New(db, nil),
	})
	return &fixture{svc: svc, db: db, root: root}
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(query, args...).Scan(&n))
	return n
}

func decodeBlob(t *testing.T, data []byte) *pipeline.Raster {
	t.Helper()
	r, err := pipeline.Decode(data)
	require.NoError(t, err)
	return r
}

func TestIngest_Submission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upload := testutil.EncodePNG(t, testutil.GradientImage(3000, 1500))

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", upload)
	require.NoError(t, err)
	assert.Equal(t, pipeline.PNG, img.Format)
	assert.Equal(t, 2048, img.Width)
	assert.Equal(t, 1024, img.Height)
	assert.True(t, img.HasThumbnail)
	assert.Equal(t, int64(1), img.Version)

	_, primary, err := f.svc.Open(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.SizeBytes, int64(len(primary)))
	stored := decodeBlob(t, primary)
	assert.Equal(t, pipeline.PNG, stored.Format())
	assert.Equal(t, 2048, stored.Width())

	_, thumb, err := f.svc.Thumbnail(ctx, img.ID)
	require.NoError(t, err)
	th := decodeBlob(t, thumb)
	assert.Equal(t, pipeline.JPEG, th.Format())
	assert.Equal(t, 500, th.Width())
	assert.Equal(t, 250, th.Height())

	assert.Equal(t, []string{"images/submission/1/v1.png", "images/submission/1/v1_thumb.jpg"},
		testutil.ListFiles(t, f.root))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM activity_events WHERE event_type = 'upload'`))
}

func TestIngest_TaskPageKeepsSmallImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindTaskPage, "image/jpeg", testutil.EncodeJPEG(t, testutil.GradientImage(100, 50)))
	require.NoError(t, err)
	assert.Equal(t, pipeline.JPEG, img.Format)
	assert.Equal(t, 100, img.Width)
	assert.Equal(t, 50, img.Height)
	assert.False(t, img.HasThumbnail)

	_, _, err = f.svc.Thumbnail(ctx, img.ID)
	assert.ErrorIs(t, err, ErrNoThumbnail)
}

func TestIngest_AppliesEXIFOrientation(t *testing.T) {
	f := newFixture(t)
	upload := testutil.WithEXIFOrientation(t, testutil.EncodeJPEG(t, testutil.QuadrantImage(64, 32)), 6)

	img, err := f.svc.Ingest(context.Background(), KindExample, "image/jpeg", upload)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Width)
	assert.Equal(t, 64, img.Height)

	_, primary, err := f.svc.Open(context.Background(), img.ID)
	require.NoError(t, err)
	stored := decodeBlob(t, primary)
	assert.Equal(t, pipeline.OrientationNormal, stored.Orientation(), "stored blob carries no EXIF")
	assert.True(t, testutil.IsReddish(stored.At(24, 8)))
}

func TestIngest_Rejects(t *testing.T) {
	png := testutil.EncodePNG(t, testutil.GradientImage(10, 10))

	tests := []struct {
		name    string
		kind    Kind
		mime    string
		data    []byte
		wantErr error
	}{
		{"gif declared", KindSubmission, "image/gif", png, pipeline.ErrFormat},
		{"no declared type", KindSubmission, "", png, pipeline.ErrFormat},
		{"corrupt", KindSubmission, "image/png", []byte("definitely not a png"), pipeline.ErrDecode},
		{"avatar through ingest", KindAvatar, "image/png", png, ErrInvalidKind},
		{"unknown kind", Kind("poster"), "image/png", png, ErrInvalidKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Ingest(context.Background(), tt.kind, tt.mime, tt.data)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsClientError(err))
			assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM images`))
			assert.Empty(t, testutil.ListFiles(t, f.root))
		})
	}
}

func TestIngestAvatar_ReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	first, err := f.svc.IngestAvatar(ctx, owner, "image/png", testutil.EncodePNG(t, testutil.GradientImage(100, 100)))
	require.NoError(t, err)
	assert.Equal(t, pipeline.JPEG, first.Format, "avatars are always JPEG")
	assert.Equal(t, 500, first.Width)
	assert.Equal(t, 500, first.Height)
	assert.Equal(t, owner.String(), first.OwnerID)
	assert.False(t, first.HasThumbnail)

	second, err := f.svc.IngestAvatar(ctx, owner, "image/jpeg", testutil.EncodeJPEG(t, testutil.GradientImage(200, 100)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, 500, second.Width)
	assert.Equal(t, 250, second.Height)

	got, err := f.svc.Avatar(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, second.Version, got.Version)

	assert.Equal(t, []string{"images/avatar/1/v2.jpg"}, testutil.ListFiles(t, f.root))

	_, err = f.svc.Avatar(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.IngestAvatar(ctx, uuid.Nil, "image/png", testutil.EncodePNG(t, testutil.GradientImage(4, 4)))
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestTransform_RotatesRasterThumbnailAndAnnotations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.QuadrantImage(40, 20)))
	require.NoError(t, err)
	a, err := f.svc.AddAnnotation(ctx, img.ID, json.RawMessage(`[[{"x":0.1,"y":0.1}]]`), "look here")
	require.NoError(t, err)
	assert.Equal(t, pipeline.Rot0, a.Orientation)

	out, err := f.svc.Transform(ctx, img.ID, pipeline.RotateClockwise)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Width)
	assert.Equal(t, 40, out.Height)
	assert.Equal(t, int64(2), out.Version)

	_, primary, err := f.svc.Open(ctx, img.ID)
	require.NoError(t, err)
	rotated := decodeBlob(t, primary)
	assert.Equal(t, pipeline.PNG, rotated.Format())
	// the red top-left quadrant is now top-right
	assert.Equal(t, testutil.Red, rotated.At(15, 5))
	assert.Equal(t, testutil.Blue, rotated.At(5, 5))

	_, thumb, err := f.svc.Thumbnail(ctx, img.ID)
	require.NoError(t, err)
	th := decodeBlob(t, thumb)
	assert.Equal(t, 188, th.Width())
	assert.Equal(t, 375, th.Height())

	annotations, err := f.svc.Annotations(ctx, img.ID, false)
	require.NoError(t, err)
	require.Len(t, annotations, 1)
	assert.Equal(t, pipeline.Rot90, annotations[0].Orientation)
	assert.JSONEq(t, `[[{"x":0.1,"y":0.1}]]`, string(annotations[0].Lines))

	assert.Equal(t, []string{"images/submission/1/v2.png", "images/submission/1/v2_thumb.jpg"},
		testutil.ListFiles(t, f.root), "superseded version is removed")
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM activity_events WHERE event_type = 'transform'`))
}

func TestTransform_SequenceFoldsOrientation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindExample, "image/png", testutil.EncodePNG(t, testutil.GradientImage(30, 20)))
	require.NoError(t, err)
	_, err = f.svc.AddAnnotation(ctx, img.ID, nil, "only a comment")
	require.NoError(t, err)

	ops := []pipeline.Transformation{
		pipeline.RotateClockwise,
		pipeline.RotateClockwise,
		pipeline.FlipHorizontal,
		pipeline.RotateCounterClockwise,
	}
	for _, op := range ops {
		_, err := f.svc.Transform(ctx, img.ID, op)
		require.NoError(t, err)
	}

	annotations, err := f.svc.Annotations(ctx, img.ID, false)
	require.NoError(t, err)
	require.Len(t, annotations, 1)
	assert.Equal(t, pipeline.Rot90Flipped, annotations[0].Orientation)
	assert.Equal(t, pipeline.FoldOrientation(pipeline.Rot0, ops...), annotations[0].Orientation)
	assert.JSONEq(t, `[]`, string(annotations[0].Lines))
}

func TestTransform_FourTurnsRestorePixels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := testutil.GradientImage(30, 20)

	img, err := f.svc.Ingest(ctx, KindTaskPage, "image/png", testutil.EncodePNG(t, src))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := f.svc.Transform(ctx, img.ID, pipeline.RotateCounterClockwise)
		require.NoError(t, err)
	}

	_, primary, err := f.svc.Open(ctx, img.ID)
	require.NoError(t, err)
	restored := decodeBlob(t, primary).Image().(*image.NRGBA)
	assert.Equal(t, src.Pix, restored.Pix)
}

func TestTransform_Avatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := f.svc.IngestAvatar(ctx, owner, "image/png", testutil.EncodePNG(t, testutil.GradientImage(200, 100)))
	require.NoError(t, err)

	out, err := f.svc.TransformAvatar(ctx, owner, pipeline.RotateCounterClockwise)
	require.NoError(t, err)
	assert.Equal(t, pipeline.JPEG, out.Format)
	assert.Equal(t, 250, out.Width)
	assert.Equal(t, 500, out.Height)

	_, err = f.svc.TransformAvatar(ctx, uuid.New(), pipeline.FlipVertical)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransform_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Transform(ctx, 12345, pipeline.FlipVertical)
	assert.ErrorIs(t, err, ErrNotFound)

	img, err := f.svc.Ingest(ctx, KindTaskPage, "image/png", testutil.EncodePNG(t, testutil.GradientImage(8, 8)))
	require.NoError(t, err)
	_, err = f.svc.Transform(ctx, img.ID, pipeline.Transformation(42))
	assert.ErrorIs(t, err, pipeline.ErrUnknownTransformation)
	assert.True(t, IsClientError(err))
}

func TestTransform_FailureLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.GradientImage(40, 20)))
	require.NoError(t, err)
	_, err = f.svc.AddAnnotation(ctx, img.ID, json.RawMessage(`[]`), "note")
	require.NoError(t, err)

	// a directory where the next thumbnail goes makes the second blob write fail
	store := storage.New(f.root)
	require.NoError(t, os.MkdirAll(store.ThumbnailPath(string(KindSubmission), img.ID, 2), 0o755))

	_, err = f.svc.Transform(ctx, img.ID, pipeline.RotateClockwise)
	require.Error(t, err)

	got, err := f.svc.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, 40, got.Width)

	annotations, err := f.svc.Annotations(ctx, img.ID, false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Rot0, annotations[0].Orientation)

	assert.NoFileExists(t, store.ImagePath(string(KindSubmission), img.ID, 2, "png"))
	assert.FileExists(t, store.ImagePath(string(KindSubmission), img.ID, 1, "png"))
	assert.FileExists(t, store.ThumbnailPath(string(KindSubmission), img.ID, 1))
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM activity_events WHERE event_type = 'transform'`))
}

func TestTransform_ConcurrentCallsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.GradientImage(40, 20)))
	require.NoError(t, err)
	_, err = f.svc.AddAnnotation(ctx, img.ID, json.RawMessage(`[]`), "note")
	require.NoError(t, err)

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transform(ctx, img.ID, pipeline.RotateClockwise)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers+1), got.Version)
	// six quarter turns add up to a half turn
	assert.Equal(t, 40, got.Width)
	assert.Equal(t, 20, got.Height)

	annotations, err := f.svc.Annotations(ctx, img.ID, false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Rot180, annotations[0].Orientation)

	assert.Equal(t, []string{"images/submission/1/v7.png", "images/submission/1/v7_thumb.jpg"},
		testutil.ListFiles(t, f.root))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.GradientImage(8, 8)))
	require.NoError(t, err)
	_, err = f.svc.AddAnnotation(ctx, img.ID, nil, "bye")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, img.ID))
	_, err = f.svc.Get(ctx, img.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM annotations`))
	assert.Empty(t, testutil.ListFiles(t, f.root))

	assert.ErrorIs(t, f.svc.Delete(ctx, img.ID), ErrNotFound)
}

func TestAnnotations_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddAnnotation(ctx, 999, nil, "orphan")
	assert.ErrorIs(t, err, ErrNotFound)

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.GradientImage(8, 8)))
	require.NoError(t, err)

	_, err = f.svc.AddAnnotation(ctx, img.ID, nil, "  ")
	assert.ErrorIs(t, err, ErrEmptyDrawing)

	_, err = f.svc.AddAnnotation(ctx, img.ID, json.RawMessage(`[[{"x":`), "")
	assert.ErrorIs(t, err, ErrInvalidDrawing)
	assert.True(t, IsClientError(err))

	a, err := f.svc.AddAnnotation(ctx, img.ID, json.RawMessage(`[[{"x":1,"y":2}]]`), "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteAnnotation(ctx, img.ID+1, a.ID), ErrNotFound)
	require.NoError(t, f.svc.DeleteAnnotation(ctx, img.ID, a.ID))
	assert.ErrorIs(t, f.svc.DeleteAnnotation(ctx, img.ID, a.ID), ErrNotFound)

	_, err = f.svc.Annotations(ctx, 999, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindSubmission, KindExample, KindTaskPage} {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("avatar")
	assert.ErrorIs(t, err, ErrInvalidKind)

	assert.True(t, KindSubmission.HasThumbnail())
	assert.True(t, KindExample.HasThumbnail())
	assert.False(t, KindTaskPage.HasThumbnail())
	assert.False(t, KindAvatar.HasThumbnail())
}

func TestList_FiltersByKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	png := testutil.EncodePNG(t, testutil.GradientImage(8, 8))

	sub, err := f.svc.Ingest(ctx, KindSubmission, "image/png", png)
	require.NoError(t, err)
	page, err := f.svc.Ingest(ctx, KindTaskPage, "image/png", png)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, sub.ID, all[0].ID)
	assert.Equal(t, page.ID, all[1].ID)

	pages, err := f.svc.List(ctx, KindTaskPage)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, page.ID, pages[0].ID)
	assert.False(t, pages[0].HasThumbnail)
}

func TestUpdateAnnotation_KeepsFoldedOrientation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.QuadrantImage(40, 20)))
	require.NoError(t, err)
	a, err := f.svc.AddAnnotation(ctx, img.ID, json.RawMessage(`[[{"x":0.1,"y":0.1}]]`), "first")
	require.NoError(t, err)

	_, err = f.svc.Transform(ctx, img.ID, pipeline.RotateClockwise)
	require.NoError(t, err)

	comment := "second"
	edited, err := f.svc.UpdateAnnotation(ctx, img.ID, a.ID, AnnotationChanges{
		Lines:   json.RawMessage(`[[{"x":0.5,"y":0.5}]]`),
		Comment: &comment,
	})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Rot90, edited.Orientation)
	assert.Equal(t, "second", edited.Comment)
	assert.JSONEq(t, `[[{"x":0.5,"y":0.5}]]`, string(edited.Lines))

	// the orientation keeps folding from where the edit left it
	_, err = f.svc.Transform(ctx, img.ID, pipeline.RotateClockwise)
	require.NoError(t, err)
	got, err := f.svc.Annotation(ctx, img.ID, a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Rot180, got.Orientation)
	assert.Equal(t, "second", got.Comment)
}

func TestUpdateAnnotation_PartialAndSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.GradientImage(8, 8)))
	require.NoError(t, err)
	a, err := f.svc.AddAnnotation(ctx, img.ID, json.RawMessage(`[[{"x":1,"y":2}]]`), "keep me")
	require.NoError(t, err)
	b, err := f.svc.AddAnnotation(ctx, img.ID, nil, "visible")
	require.NoError(t, err)

	hidden := true
	out, err := f.svc.UpdateAnnotation(ctx, img.ID, a.ID, AnnotationChanges{SoftDeleted: &hidden})
	require.NoError(t, err)
	assert.True(t, out.SoftDeleted)
	assert.Equal(t, "keep me", out.Comment, "absent fields keep their value")
	assert.JSONEq(t, `[[{"x":1,"y":2}]]`, string(out.Lines))

	list, err := f.svc.Annotations(ctx, img.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	list, err = f.svc.Annotations(ctx, img.ID, true)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = f.svc.Annotation(ctx, img.ID, a.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := f.svc.Annotation(ctx, img.ID, a.ID, true)
	require.NoError(t, err)
	assert.True(t, got.SoftDeleted)

	// hidden annotations still follow the image
	_, err = f.svc.Transform(ctx, img.ID, pipeline.FlipHorizontal)
	require.NoError(t, err)
	restore := false
	out, err = f.svc.UpdateAnnotation(ctx, img.ID, a.ID, AnnotationChanges{
		Lines:       json.RawMessage(`null`),
		SoftDeleted: &restore,
	})
	require.NoError(t, err)
	assert.False(t, out.SoftDeleted)
	assert.Equal(t, pipeline.Rot0Flipped, out.Orientation)
	assert.JSONEq(t, `[[{"x":1,"y":2}]]`, string(out.Lines), "null lines count as absent")
}

func TestUpdateAnnotation_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.GradientImage(8, 8)))
	require.NoError(t, err)
	a, err := f.svc.AddAnnotation(ctx, img.ID, nil, "note")
	require.NoError(t, err)

	_, err = f.svc.UpdateAnnotation(ctx, img.ID, a.ID, AnnotationChanges{})
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.True(t, IsClientError(err))

	_, err = f.svc.UpdateAnnotation(ctx, img.ID, a.ID, AnnotationChanges{Lines: json.RawMessage(`[[`)})
	assert.ErrorIs(t, err, ErrInvalidDrawing)

	comment := "moved"
	_, err = f.svc.UpdateAnnotation(ctx, img.ID+1, a.ID, AnnotationChanges{Comment: &comment})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.UpdateAnnotation(ctx, img.ID, a.ID+1, AnnotationChanges{Comment: &comment})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.svc.Annotation(ctx, img.ID, a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "note", got.Comment)
}

func TestDeleteAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := f.svc.IngestAvatar(ctx, owner, "image/png", testutil.EncodePNG(t, testutil.GradientImage(50, 50)))
	require.NoError(t, err)
	require.NotEmpty(t, testutil.ListFiles(t, f.root))

	require.NoError(t, f.svc.DeleteAvatar(ctx, owner))
	_, err = f.svc.Avatar(ctx, owner)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, testutil.ListFiles(t, f.root))
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM images`))

	assert.ErrorIs(t, f.svc.DeleteAvatar(ctx, owner), ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteAvatar(ctx, uuid.Nil), ErrInvalidOwner)

	// a new upload after the delete starts over
	again, err := f.svc.IngestAvatar(ctx, owner, "image/png", testutil.EncodePNG(t, testutil.GradientImage(50, 50)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Version)
}

func TestOpen_RetriesWhenBlobWasSuperseded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	img, err := f.svc.Ingest(ctx, KindSubmission, "image/png", testutil.EncodePNG(t, testutil.QuadrantImage(40, 20)))
	require.NoError(t, err)
	stale, err := f.svc.Get(ctx, img.ID)
	require.NoError(t, err)

	// a transform commits between the row read and the blob read
	_, err = f.svc.Transform(ctx, img.ID, pipeline.RotateClockwise)
	require.NoError(t, err)
	_, err = os.Stat(f.svc.primaryPath(stale))
	require.ErrorIs(t, err, os.ErrNotExist)

	reload := func() (*Image, error) { return f.svc.Get(ctx, img.ID) }
	got, data, err := f.svc.readBlob(stale, f.svc.primaryPath, reload)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	r := decodeBlob(t, data)
	assert.Equal(t, 20, r.Width())
	assert.Equal(t, 40, r.Height())

	got, data, err = f.svc.readBlob(stale, f.svc.thumbnailPath, reload)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Less(t, decodeBlob(t, data).Width(), decodeBlob(t, data).Height())

	// a blob missing without a newer version is still an error
	require.NoError(t, os.Remove(f.svc.primaryPath(got)))
	_, _, err = f.svc.readBlob(got, f.svc.primaryPath, reload)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, _, err = f.svc.Open(ctx, img.ID)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
