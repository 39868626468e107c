package services

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/models"
)

// UploadFile is one image submitted through the admin upload form.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type UploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type UploadResult struct {
	BibNumber models.BibNumber `json:"bib_number"`
	Uploaded  []models.Photo   `json:"uploaded"`
	Failed    []UploadFailure  `json:"failed"`
}

type PurgeResult struct {
	PhotosDeleted  int `json:"photos_deleted"`
	ObjectsRemoved int `json:"objects_removed"`
}

// AdminService uploads and purges photos.
type AdminService struct {
	store     Store
	storage   ObjectStorage
	uploadTTL time.Duration
	now       func() time.Time
}

func NewAdminService(store Store, storage ObjectStorage, uploadTTL time.Duration) *AdminService {
	return &AdminService{store: store, storage: storage, uploadTTL: uploadTTL, now: time.Now}
}

// Upload stores each file and records it as a photo of bib. Files are
// handled independently; a failed file is reported and does not stop the
// rest.
func (s *AdminService) Upload(ctx context.Context, bib models.BibNumber, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	order, err := s.store.NextPhotoOrder(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to determine photo order: %w", err)
	}

	result := &UploadResult{BibNumber: bib, Uploaded: []models.Photo{}, Failed: []UploadFailure{}}
	for _, f := range files {
		photo, err := s.uploadOne(ctx, bib, order, f)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("filename", f.Filename).Str("bib_number", bib.String()).Msg("Photo upload failed")
			result.Failed = append(result.Failed, UploadFailure{Filename: f.Filename, Error: err.Error()})
			continue
		}
		order++
		result.Uploaded = append(result.Uploaded, *photo)
	}

	if len(result.Uploaded) > 0 {
		ids := make([]uuid.UUID, len(result.Uploaded))
		for i, p := range result.Uploaded {
			ids[i] = p.ID
		}
		if err := s.store.EnsureAccess(ctx, bib, ids); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("bib_number", bib.String()).Msg("Failed to create access records")
		}
		for _, id := range ids {
			if err := s.store.UpsertSelection(ctx, bib, id, true); err != nil {
				logging.FromContext(ctx).Warn().Err(err).Str("photo_id", id.String()).Msg("Failed to create default selection")
			}
		}
	}
	return result, nil
}

func (s *AdminService) uploadOne(ctx context.Context, bib models.BibNumber, order int, f UploadFile) (*models.Photo, error) {
	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Filename)))
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s is not an image", ErrValidation, f.Filename)
	}
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrValidation, f.Filename)
	}

	id := uuid.New()
	path := fmt.Sprintf("%s-%s.%s", bib, id, fileExtension(f.Filename, contentType))

	if err := s.storage.Upload(ctx, path, contentType, f.Data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	url, err := s.storage.CreateSignedURL(ctx, path, s.uploadTTL)
	if err != nil {
		s.removeObjects(ctx, []string{path})
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	metadata, err := json.Marshal(map[string]any{
		"original_filename": f.Filename,
		"file_size":         len(f.Data),
		"content_type":      contentType,
		"uploaded_by":       "admin",
	})
	if err != nil {
		s.removeObjects(ctx, []string{path})
		return nil, err
	}

	now := s.now().UTC()
	watermark := url
	photo := &models.Photo{
		ID:           id,
		BibNumber:    bib,
		PreviewURL:   url,
		HighresURL:   url,
		WatermarkURL: &watermark,
		PhotoOrder:   order,
		IsActive:     true,
		Metadata:     metadata,
		UploadedAt:   now,
		UpdatedAt:    now,
	}
	if err := s.store.CreatePhoto(ctx, photo); err != nil {
		s.removeObjects(ctx, []string{path})
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}
	return photo, nil
}

// DeletePhoto removes one photo with its dependent rows, then its stored
// object.
func (s *AdminService) DeletePhoto(ctx context.Context, id uuid.UUID) (*PurgeResult, error) {
	photo, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPhotoNotFound
		}
		return nil, err
	}
	if err := s.store.DeletePhoto(ctx, id); err != nil {
		if isNotFound(err) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to delete photo: %w", err)
	}

	paths := s.objectPaths([]models.Photo{*photo})
	s.removeObjects(ctx, paths)
	return &PurgeResult{PhotosDeleted: 1, ObjectsRemoved: len(paths)}, nil
}

// DeleteBib purges every photo, selection, access row, survey and payment of
// bib, then the stored objects.
func (s *AdminService) DeleteBib(ctx context.Context, bib models.BibNumber) (*PurgeResult, error) {
	photos, err := s.store.DeleteBib(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to delete bib: %w", err)
	}
	if len(photos) == 0 {
		return nil, ErrBibNotFound
	}

	paths := s.objectPaths(photos)
	s.removeObjects(ctx, paths)
	logging.FromContext(ctx).Info().Str("bib_number", bib.String()).Int("photos", len(photos)).Msg("Purged bib")
	return &PurgeResult{PhotosDeleted: len(photos), ObjectsRemoved: len(paths)}, nil
}

func (s *AdminService) ListBibs(ctx context.Context) ([]models.BibSummary, error) {
	return s.store.ListBibSummaries(ctx)
}

func (s *AdminService) objectPaths(photos []models.Photo) []string {
	seen := make(map[string]struct{})
	var paths []string
	add := func(url string) {
		if p, ok := s.storage.ObjectPath(url); ok {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				paths = append(paths, p)
			}
		}
	}
	for _, p := range photos {
		add(p.PreviewURL)
		add(p.HighresURL)
		if p.WatermarkURL != nil {
			add(*p.WatermarkURL)
		}
	}
	return paths
}

func (s *AdminService) removeObjects(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := s.storage.Remove(ctx, paths); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Strs("paths", paths).Msg("Failed to remove stored objects")
	}
}

func fileExtension(filename, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "jpg"
}
