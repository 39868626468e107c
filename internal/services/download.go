package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/metrics"
	"race-photos-backend/internal/models"
)

// PhotoFile is a downloadable photo. When Data is nil the photo could not be
// fetched and the client should be sent to RedirectURL instead.
type PhotoFile struct {
	Filename    string
	ContentType string
	Data        []byte
	RedirectURL string
	AccessIDs   []uuid.UUID
}

type Archive struct {
	Filename  string
	Data      []byte
	Included  int
	Skipped   int
	AccessIDs []uuid.UUID
}

// DownloadService serves unlocked photos. Download counters are only bumped
// through ConfirmDownloads once the bytes have been delivered.
type DownloadService struct {
	access      *AccessLedger
	freshness   *URLFreshness
	fetcher     ImageFetcher
	concurrency int
}

func NewDownloadService(access *AccessLedger, freshness *URLFreshness, fetcher ImageFetcher, concurrency int) *DownloadService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DownloadService{access: access, freshness: freshness, fetcher: fetcher, concurrency: concurrency}
}

// Single returns one unlocked photo: photoID when set, otherwise the first
// unlocked photo of bib.
func (s *DownloadService) Single(ctx context.Context, bib models.BibNumber, photoID uuid.UUID) (*PhotoFile, error) {
	unlocked, err := s.access.Unlocked(ctx, bib)
	if err != nil {
		return nil, err
	}

	var chosen *models.UnlockedPhoto
	for i := range unlocked {
		if photoID == uuid.Nil || unlocked[i].Photo.ID == photoID {
			chosen = &unlocked[i]
			break
		}
	}
	if chosen == nil {
		metrics.DownloadsTotal.WithLabelValues("single", metrics.OutcomeSkipped).Inc()
		return nil, ErrNoUnlockedPhoto
	}

	photo := s.freshness.EnsureFresh(ctx, chosen.Photo)
	data, err := s.fetch(ctx, photo)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Photo fetch failed, redirecting")
		metrics.DownloadsTotal.WithLabelValues("single", "redirect").Inc()
		return &PhotoFile{RedirectURL: photo.HighresURL}, nil
	}

	return &PhotoFile{
		Filename:    fmt.Sprintf("race-photo-%s-%s.jpg", bib, shortID(photo.ID)),
		ContentType: "image/jpeg",
		Data:        data,
		AccessIDs:   []uuid.UUID{chosen.Access.ID},
	}, nil
}

// Zip bundles every unlocked photo of bib. Photos that cannot be fetched are
// skipped; the call only fails when none can.
func (s *DownloadService) Zip(ctx context.Context, bib models.BibNumber) (*Archive, error) {
	unlocked, err := s.access.Unlocked(ctx, bib)
	if err != nil {
		return nil, err
	}
	if len(unlocked) == 0 {
		metrics.DownloadsTotal.WithLabelValues("zip", metrics.OutcomeSkipped).Inc()
		return nil, ErrNoUnlockedPhoto
	}

	archive, err := s.buildArchive(ctx, unlocked)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("zip", metrics.OutcomeFailure).Inc()
		return nil, err
	}
	archive.Filename = fmt.Sprintf("race-photos-%s.zip", bib)
	return archive, nil
}

// ZipPhotos bundles the unlocked photos of bib whose ids are in ids.
func (s *DownloadService) ZipPhotos(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) (*Archive, error) {
	unlocked, err := s.access.Unlocked(ctx, bib)
	if err != nil {
		return nil, err
	}
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	filtered := unlocked[:0:0]
	for _, u := range unlocked {
		if _, ok := wanted[u.Photo.ID]; ok {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoUnlockedPhoto
	}

	archive, err := s.buildArchive(ctx, filtered)
	if err != nil {
		return nil, err
	}
	archive.Filename = fmt.Sprintf("race-photos-%s.zip", bib)
	return archive, nil
}

// ConfirmDownloads records that the files behind accessIDs were delivered.
func (s *DownloadService) ConfirmDownloads(ctx context.Context, kind string, accessIDs []uuid.UUID) {
	if err := s.access.RecordDownloads(ctx, accessIDs); err != nil {
		metrics.DownloadsTotal.WithLabelValues(kind, metrics.OutcomeFailure).Inc()
		return
	}
	metrics.DownloadsTotal.WithLabelValues(kind, metrics.OutcomeSuccess).Inc()
}

func (s *DownloadService) buildArchive(ctx context.Context, photos []models.UnlockedPhoto) (*Archive, error) {
	files := make([][]byte, len(photos))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, u := range photos {
		eg.Go(func() error {
			photo := s.freshness.EnsureFresh(egCtx, u.Photo)
			data, err := s.fetch(egCtx, photo)
			if err != nil {
				logging.FromContext(ctx).Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Skipping photo in archive")
				return nil
			}
			files[i] = data
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	archive := &Archive{}
	for i, data := range files {
		if data == nil {
			archive.Skipped++
			continue
		}
		header := &zip.FileHeader{
			Name:     fmt.Sprintf("photo-%d-%s.jpg", i+1, shortID(photos[i].Photo.ID)),
			Method:   zip.Store,
			Modified: time.Now(),
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to add photo to archive: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to add photo to archive: %w", err)
		}
		archive.Included++
		archive.AccessIDs = append(archive.AccessIDs, photos[i].Access.ID)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	if archive.Included == 0 {
		return nil, ErrNoPhotosFetched
	}
	archive.Data = buf.Bytes()
	return archive, nil
}

// fetch downloads the highres image, refreshing its signed URL and retrying
// once on failure.
func (s *DownloadService) fetch(ctx context.Context, photo models.Photo) ([]byte, error) {
	data, err := s.fetcher.Fetch(ctx, photo.HighresURL)
	if err == nil {
		return data, nil
	}

	refreshed, rerr := s.freshness.Refresh(ctx, photo)
	if rerr != nil {
		return nil, err
	}
	return s.fetcher.Fetch(ctx, refreshed.HighresURL)
}
