package janitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchlab/internal/repository"
	"sketchlab/internal/storage"
	"sketchlab/internal/testutil"
)

func writeBlob(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, storage.AtomicWrite(path, strings.NewReader("blob")))
	if age > 0 {
		at := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, at, at))
	}
}

func TestJanitorDeletesStaleBlobs(t *testing.T) {
	db, q := testutil.SetupTestDB(t)
	root := testutil.SetupTestStorage(t)
	store := storage.New(root)
	ctx := context.Background()

	img := testutil.CreateTestImage(t, q, repository.KindSubmission)
	n, err := q.UpdateImageContent(ctx, repository.UpdateImageContentParams{
		MimeType: img.MimeType, Width: img.Width, Height: img.Height, HasThumbnail: true,
		ID: img.ID, Version: img.Version,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	kind := repository.KindSubmission
	superseded := store.ImagePath(kind, img.ID, 1, "png")
	supersededThumb := store.ThumbnailPath(kind, img.ID, 1)
	current := store.ImagePath(kind, img.ID, 2, "png")
	currentThumb := store.ThumbnailPath(kind, img.ID, 2)
	inFlight := store.ImagePath(kind, img.ID, 3, "png")
	abandoned := store.ImagePath(kind, img.ID, 4, "png")
	orphanFresh := store.ImagePath(kind, 999, 1, "png")
	orphanOld := store.ImagePath(repository.KindAvatar, 998, 1, "jpg")
	unrelated := filepath.Join(root, "images", kind, "notes.txt")

	writeBlob(t, superseded, 0)
	writeBlob(t, supersededThumb, 0)
	writeBlob(t, current, time.Hour)
	writeBlob(t, currentThumb, time.Hour)
	writeBlob(t, inFlight, 0)
	writeBlob(t, abandoned, time.Hour)
	writeBlob(t, orphanFresh, 0)
	writeBlob(t, orphanOld, time.Hour)
	writeBlob(t, unrelated, time.Hour)

	j := New(Config{DB: db, StoragePath: root})
	report := j.RunOnce(ctx)

	assert.Equal(t, 4, report.Blobs)
	assert.NoFileExists(t, superseded)
	assert.NoFileExists(t, supersededThumb)
	assert.NoFileExists(t, abandoned)
	assert.NoFileExists(t, orphanOld)
	assert.FileExists(t, current)
	assert.FileExists(t, currentThumb)
	assert.FileExists(t, inFlight, "newer version within grace period")
	assert.FileExists(t, orphanFresh, "row may not be committed yet")
	assert.FileExists(t, unrelated)

	assert.NoDirExists(t, storage.ImageDir(root, repository.KindAvatar, 998))
	assert.NoDirExists(t, filepath.Join(root, "images", repository.KindAvatar))
	assert.Equal(t, 2, report.Dirs)
}

func TestJanitorDeletesOldEventsAndTempFiles(t *testing.T) {
	db, q := testutil.SetupTestDB(t)
	root := testutil.SetupTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	testutil.CreateTestEvent(t, q, "upload", now.Add(-100*24*time.Hour))
	testutil.CreateTestEvent(t, q, "transform", now.Add(-91*24*time.Hour))
	testutil.CreateTestEvent(t, q, "upload", now.Add(-89*24*time.Hour))

	dir := storage.ImageDir(root, repository.KindExample, 1)
	require.NoError(t, storage.EnsureDir(dir))
	oldTmp := filepath.Join(dir, storage.TempPrefix+"old")
	newTmp := filepath.Join(dir, storage.TempPrefix+"new")
	writeFile(t, oldTmp, time.Hour)
	writeFile(t, newTmp, 0)

	j := New(Config{DB: db, StoragePath: root, Interval: time.Hour})
	report := j.RunOnce(ctx)

	assert.Equal(t, int64(2), report.Events)
	assert.Equal(t, 1, report.TempFiles)
	assert.NoFileExists(t, oldTmp)
	assert.FileExists(t, newTmp)

	n, err := q.CountEventsSince(ctx, "upload", now.Add(-365*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJanitorEmptyStorage(t *testing.T) {
	db, _ := testutil.SetupTestDB(t)
	j := New(Config{DB: db, StoragePath: filepath.Join(t.TempDir(), "missing")})

	assert.Equal(t, Report{}, j.RunOnce(context.Background()))
}

func TestJanitorStartStop(t *testing.T) {
	db, _ := testutil.SetupTestDB(t)
	j := New(Config{DB: db, StoragePath: t.TempDir(), Interval: 10 * time.Millisecond})

	j.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		j.Stop()
		j.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestJanitorStopsOnContextCancel(t *testing.T) {
	db, _ := testutil.SetupTestDB(t)
	j := New(Config{DB: db, StoragePath: t.TempDir(), Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)
	cancel()

	select {
	case <-j.doneChan:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func writeFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	if age > 0 {
		at := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, at, at))
	}
}
