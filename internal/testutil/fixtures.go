package testutil

import (
	"context"
	"fmt"

	"race-photos-backend/internal/models"
)

// SeedBib stores n photo objects for bib and records them as active photos
// whose URLs point into storage.
func SeedBib(store *MemoryStore, storage *FakeStorage, bib models.BibNumber, n int) []models.Photo {
	photos := make([]models.Photo, 0, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("%s-%d.jpg", bib, i+1)
		_ = storage.Upload(context.Background(), path, "image/jpeg", []byte("jpeg-"+path))
		url, _ := storage.CreateSignedURL(context.Background(), path, 0)
		photos = append(photos, store.AddPhoto(bib, url))
	}
	return photos
}

// SurveyFor returns a completed survey for bib.
func SurveyFor(bib models.BibNumber) *models.SurveyResponse {
	return &models.SurveyResponse{
		BibNumber:             bib,
		RunnerName:            "Jane Runner",
		RunnerEmail:           "jane@example.com",
		SocialMediaPreference: models.SocialMediaAction,
		WaitingStopsBuying:    models.WaitingStopsBuyingNo,
	}
}
