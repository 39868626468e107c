package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
	"race-photos-backend/internal/testutil"
)

func newSelection(t *testing.T, n int) (*services.SelectionService, *testutil.MemoryStore, []models.Photo) {
	t.Helper()
	store := testutil.NewMemoryStore()
	photos := testutil.SeedBib(store, testutil.NewFakeStorage(), "1001", n)
	return services.NewSelectionService(store, store), store, photos
}

func TestSelectionSummary_DefaultsToAllSelected(t *testing.T) {
	svc, _, photos := newSelection(t, 3)

	summary, err := svc.Summary(context.Background(), "1001")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalSelected)
	assert.Equal(t, int64(1166), summary.PricePerPhoto)
	assert.Equal(t, int64(3498), summary.TotalPrice)
	assert.ElementsMatch(t, []uuid.UUID{photos[0].ID, photos[1].ID, photos[2].ID}, summary.SelectedPhotoIDs)
}

func TestSelectionToggle(t *testing.T) {
	svc, _, photos := newSelection(t, 2)
	ctx := context.Background()

	summary, err := svc.Toggle(ctx, "1001", photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSelected)
	assert.Equal(t, int64(1499), summary.TotalPrice)

	summary, err = svc.Toggle(ctx, "1001", photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSelected)
	assert.Equal(t, int64(2598), summary.TotalPrice)
}

func TestSelectionRejectsForeignPhoto(t *testing.T) {
	svc, store, _ := newSelection(t, 1)
	other := testutil.SeedBib(store, testutil.NewFakeStorage(), "2002", 1)

	_, err := svc.Toggle(context.Background(), "1001", other[0].ID)
	assert.ErrorIs(t, err, services.ErrPhotoOwnership)

	_, err = svc.ReplaceSelection(context.Background(), "1001", []uuid.UUID{other[0].ID})
	assert.ErrorIs(t, err, services.ErrPhotoOwnership)

	sel, err := store.ListSelections(context.Background(), "2002")
	require.NoError(t, err)
	assert.Empty(t, sel)
}

func TestSelectionBulk(t *testing.T) {
	svc, _, photos := newSelection(t, 4)
	ctx := context.Background()

	summary, err := svc.DeselectAll(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalSelected)
	assert.Equal(t, int64(0), summary.TotalPrice)
	assert.NotNil(t, summary.SelectedPhotoIDs)

	summary, err = svc.ReplaceSelection(ctx, "1001", []uuid.UUID{photos[1].ID, photos[3].ID, photos[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSelected)
	assert.ElementsMatch(t, []uuid.UUID{photos[1].ID, photos[3].ID}, summary.SelectedPhotoIDs)

	summary, err = svc.SelectAll(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalSelected)
	assert.Equal(t, int64(4396), summary.TotalPrice)
	assert.Equal(t, int64(1600), summary.Savings.Savings)
}

func TestSelectionBulkFailureLeavesStateUnchanged(t *testing.T) {
	svc, store, photos := newSelection(t, 2)
	ctx := context.Background()

	_, err := svc.SetSelected(ctx, "1001", photos[0].ID, false)
	require.NoError(t, err)

	store.FailOn("ReplaceSelections", assert.AnError)
	_, err = svc.SelectAll(ctx, "1001")
	require.Error(t, err)

	store.FailOn("ReplaceSelections", nil)
	summary, err := svc.Summary(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{photos[1].ID}, summary.SelectedPhotoIDs)
}

func TestSelectAllUnknownBib(t *testing.T) {
	svc, _, _ := newSelection(t, 1)

	_, err := svc.SelectAll(context.Background(), "9999")
	assert.ErrorIs(t, err, services.ErrBibNotFound)
}
