package services_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"race-photos-backend/internal/services"
	"race-photos-backend/internal/testutil"
)

func TestAdminUpload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.admin.Upload(ctx, "1001", []services.UploadFile{
		{Filename: "finish.jpg", ContentType: "image/jpeg", Data: []byte("a")},
		{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("b")},
		{Filename: "start.png", Data: []byte("c")},
	})
	require.NoError(t, err)
	require.Len(t, result.Uploaded, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "notes.txt", result.Failed[0].Filename)

	first := result.Uploaded[0]
	assert.Equal(t, 1, first.PhotoOrder)
	assert.Equal(t, 2, result.Uploaded[1].PhotoOrder)
	assert.Equal(t, first.PreviewURL, first.HighresURL)
	assert.True(t, strings.HasPrefix(first.PreviewURL, testutil.StorageBaseURL+"1001-"))
	assert.True(t, strings.Contains(result.Uploaded[1].PreviewURL, ".png?"))

	var meta map[string]any
	require.NoError(t, json.Unmarshal(first.Metadata, &meta))
	assert.Equal(t, "finish.jpg", meta["original_filename"])
	assert.Equal(t, "admin", meta["uploaded_by"])

	access, ok := h.store.Access("1001", first.ID)
	require.True(t, ok)
	assert.False(t, access.IsUnlocked)

	summary, err := services.NewSelectionService(h.store, h.store).Summary(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSelected)
}

func TestAdminUploadRollsBackObjectOnDBFailure(t *testing.T) {
	h := newHarness(t)
	h.store.FailOn("CreatePhoto", assert.AnError)

	result, err := h.admin.Upload(context.Background(), "1001", []services.UploadFile{
		{Filename: "finish.jpg", ContentType: "image/jpeg", Data: []byte("a")},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Uploaded)
	assert.Len(t, result.Failed, 1)
	assert.Empty(t, h.storage.Objects)
	assert.Len(t, h.storage.Removed, 1)
}

func TestAdminUploadNoFiles(t *testing.T) {
	h := newHarness(t)

	_, err := h.admin.Upload(context.Background(), "1001", nil)
	assert.ErrorIs(t, err, services.ErrNoFiles)
}

func TestAdminDeletePhoto(t *testing.T) {
	h := newHarness(t)
	photos, _ := h.paid(t, "1001", 2)

	result, err := h.admin.DeletePhoto(context.Background(), photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PhotosDeleted)
	assert.Equal(t, []string{"1001-1.jpg"}, h.storage.Removed)

	_, ok := h.store.Access("1001", photos[0].ID)
	assert.False(t, ok)

	_, err = h.admin.DeletePhoto(context.Background(), photos[0].ID)
	assert.ErrorIs(t, err, services.ErrPhotoNotFound)
}

func TestAdminDeleteBib(t *testing.T) {
	h := newHarness(t)
	h.paid(t, "1001", 2)
	testutil.SeedBib(h.store, h.storage, "2002", 1)
	h.storage.RemoveErr = assert.AnError

	result, err := h.admin.DeleteBib(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, 2, result.PhotosDeleted)

	bibs, err := h.admin.ListBibs(context.Background())
	require.NoError(t, err)
	require.Len(t, bibs, 1)
	assert.Equal(t, "2002", bibs[0].BibNumber.String())
	assert.Empty(t, h.store.Payments())

	_, err = h.admin.DeleteBib(context.Background(), "1001")
	assert.ErrorIs(t, err, services.ErrBibNotFound)
}

func TestAdminListBibs(t *testing.T) {
	h := newHarness(t)
	h.paid(t, "1001", 2)
	h.surveyed(t, "2002", 1)

	bibs, err := h.admin.ListBibs(context.Background())
	require.NoError(t, err)
	require.Len(t, bibs, 2)

	byBib := map[string]bool{}
	for _, b := range bibs {
		byBib[b.BibNumber.String()] = b.IsPaid
		assert.True(t, b.HasSurvey)
	}
	assert.True(t, byBib["1001"])
	assert.False(t, byBib["2002"])
}
