package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchlab/internal/repository"
)

func TestSetupTestDB(t *testing.T) {
	_, q := SetupTestDB(t)

	images, err := q.ListImages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images, "fresh DB has no images")

	img := CreateTestImage(t, q, repository.KindSubmission)
	assert.True(t, img.HasThumbnail)
	CreateTestAnnotation(t, q, img.ID, "hello")

	annotations, err := q.ListAnnotationsByImage(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Len(t, annotations, 1)
}

func TestListFiles_MissingRoot(t *testing.T) {
	assert.Empty(t, ListFiles(t, SetupTestStorage(t)))
}
