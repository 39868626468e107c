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

func validSubmission(bib models.BibNumber, photos []models.Photo) services.SurveySubmission {
	ids := make([]uuid.UUID, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	return services.SurveySubmission{
		BibNumber:             bib,
		PhotoIDs:              ids,
		RunnerName:            "Jane Runner",
		RunnerEmail:           "jane@example.com",
		SocialMediaPreference: models.SocialMediaPosed,
		WaitingStopsBuying:    models.WaitingStopsBuyingYes,
	}
}

func newSurvey(t *testing.T) (*services.SurveyService, *testutil.MemoryStore, []models.Photo) {
	t.Helper()
	store := testutil.NewMemoryStore()
	photos := testutil.SeedBib(store, testutil.NewFakeStorage(), "1001", 2)
	return services.NewSurveyService(store, store, services.NewAccessLedger(store)), store, photos
}

func TestSurveySubmit(t *testing.T) {
	svc, store, photos := newSurvey(t)

	result, err := svc.Submit(context.Background(), validSubmission("1001", photos))
	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "jane@example.com", result.Response.RunnerEmail)

	for _, p := range photos {
		a, ok := store.Access("1001", p.ID)
		require.True(t, ok)
		assert.Equal(t, models.AccessLockedSurveyed, a.State())
	}
}

func TestSurveySubmitTwice(t *testing.T) {
	svc, _, photos := newSurvey(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, validSubmission("1001", photos))
	require.NoError(t, err)

	sub := validSubmission("1001", photos)
	sub.RunnerName = "Someone Else"
	second, err := svc.Submit(ctx, sub)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, first.Response.ID, second.Response.ID)
	assert.Equal(t, "Jane Runner", second.Response.RunnerName)
}

func TestSurveyResubmitWithForeignPhotos(t *testing.T) {
	svc, store, photos := newSurvey(t)
	ctx := context.Background()
	other := testutil.SeedBib(store, testutil.NewFakeStorage(), "2002", 1)

	_, err := svc.Submit(ctx, validSubmission("1001", photos))
	require.NoError(t, err)

	result, err := svc.Submit(ctx, validSubmission("1001", other))
	assert.ErrorIs(t, err, services.ErrPhotoOwnership)
	assert.Nil(t, result)
}

func TestSurveyValidation(t *testing.T) {
	svc, store, photos := newSurvey(t)
	foreign := testutil.SeedBib(store, testutil.NewFakeStorage(), "2002", 1)

	cases := []struct {
		name   string
		mutate func(*services.SurveySubmission)
		err    error
	}{
		{"no photos", func(s *services.SurveySubmission) { s.PhotoIDs = nil }, services.ErrNoPhotosSelected},
		{"no name", func(s *services.SurveySubmission) { s.RunnerName = "  " }, services.ErrMissingFields},
		{"no email", func(s *services.SurveySubmission) { s.RunnerEmail = "" }, services.ErrMissingFields},
		{"bad email", func(s *services.SurveySubmission) { s.RunnerEmail = "not-an-email" }, services.ErrValidation},
		{"bad preference", func(s *services.SurveySubmission) { s.SocialMediaPreference = "candid" }, services.ErrInvalidAnswer},
		{"bad waiting answer", func(s *services.SurveySubmission) { s.WaitingStopsBuying = "maybe" }, services.ErrInvalidAnswer},
		{"foreign photo", func(s *services.SurveySubmission) { s.PhotoIDs = append(s.PhotoIDs, foreign[0].ID) }, services.ErrPhotoOwnership},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission("1001", photos)
			tc.mutate(&sub)
			_, err := svc.Submit(context.Background(), sub)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := svc.Get(context.Background(), "1001")
	assert.ErrorIs(t, err, services.ErrSurveyNotFound)
}

func TestSurveyAccessFailureIsWarning(t *testing.T) {
	svc, store, photos := newSurvey(t)
	store.FailOn("MarkSurveyCompleted", assert.AnError)

	result, err := svc.Submit(context.Background(), validSubmission("1001", photos))
	require.NoError(t, err)
	assert.Len(t, result.Warnings, 1)

	saved, err := svc.Get(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, result.Response.ID, saved.ID)
}
