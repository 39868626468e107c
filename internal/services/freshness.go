package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/metrics"
	"race-photos-backend/internal/models"
)

// URLFreshness re-signs stored photo URLs before they expire.
type URLFreshness struct {
	photos    PhotoStore
	storage   ObjectStorage
	threshold time.Duration
	ttl       time.Duration
	now       func() time.Time
}

func NewURLFreshness(photos PhotoStore, storage ObjectStorage, threshold, ttl time.Duration) *URLFreshness {
	return &URLFreshness{
		photos:    photos,
		storage:   storage,
		threshold: threshold,
		ttl:       ttl,
		now:       time.Now,
	}
}

// NeedsRefresh reports whether the photo's URLs were signed longer ago than
// the refresh threshold.
func (f *URLFreshness) NeedsRefresh(photo models.Photo) bool {
	return f.now().Sub(photo.LastSignedAt()) > f.threshold
}

// EnsureFresh returns photo with refreshed URLs when they are stale. A failed
// refresh is logged and the original photo returned.
func (f *URLFreshness) EnsureFresh(ctx context.Context, photo models.Photo) models.Photo {
	if !f.NeedsRefresh(photo) {
		return photo
	}
	refreshed, err := f.Refresh(ctx, photo)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Failed to refresh signed urls")
		return photo
	}
	return refreshed
}

// Refresh re-signs every URL of photo that points into the bucket and
// persists the result.
func (f *URLFreshness) Refresh(ctx context.Context, photo models.Photo) (models.Photo, error) {
	signed := make(map[string]string, 3)
	resign := func(url string) (string, bool, error) {
		path, ok := f.storage.ObjectPath(url)
		if !ok {
			return url, false, nil
		}
		if u, ok := signed[path]; ok {
			return u, true, nil
		}
		u, err := f.storage.CreateSignedURL(ctx, path, f.ttl)
		if err != nil {
			return "", false, err
		}
		signed[path] = u
		return u, true, nil
	}

	preview, okPreview, err := resign(photo.PreviewURL)
	if err != nil {
		metrics.URLRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return photo, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	highres, okHighres, err := resign(photo.HighresURL)
	if err != nil {
		metrics.URLRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return photo, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	watermark := photo.WatermarkURL
	okWatermark := false
	if watermark != nil {
		u, ok, err := resign(*watermark)
		if err != nil {
			metrics.URLRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
			return photo, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		watermark, okWatermark = &u, ok
	}

	if !okPreview && !okHighres && !okWatermark {
		metrics.URLRefreshesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return photo, ErrNotRefreshable
	}

	updatedAt, err := f.photos.UpdatePhotoURLs(ctx, photo.ID, preview, highres, watermark)
	if err != nil {
		metrics.URLRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return photo, fmt.Errorf("failed to save refreshed urls: %w", err)
	}

	photo.PreviewURL = preview
	photo.HighresURL = highres
	photo.WatermarkURL = watermark
	photo.UpdatedAt = updatedAt
	metrics.URLRefreshesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return photo, nil
}

// RefreshByID forces a refresh of one photo regardless of age.
func (f *URLFreshness) RefreshByID(ctx context.Context, id uuid.UUID) (models.Photo, error) {
	photo, err := f.photos.GetPhoto(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return models.Photo{}, ErrPhotoNotFound
		}
		return models.Photo{}, err
	}
	return f.Refresh(ctx, *photo)
}
