package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/pricing"
)

type GalleryStatus string

const (
	GalleryOK       GalleryStatus = "ok"
	GalleryEmpty    GalleryStatus = "empty"
	GalleryNotFound GalleryStatus = "not_found"
)

// GalleryPhoto is a photo as the runner sees it. HighresURL is only set once
// the photo is unlocked.
type GalleryPhoto struct {
	ID           uuid.UUID          `json:"id"`
	PreviewURL   string             `json:"preview_url"`
	WatermarkURL *string            `json:"watermark_url,omitempty"`
	HighresURL   string             `json:"highres_url,omitempty"`
	PhotoOrder   int                `json:"photo_order"`
	AccessState  models.AccessState `json:"access_state"`
	IsSelected   bool               `json:"is_selected"`
	IsUnlocked   bool               `json:"is_unlocked"`
}

type Gallery struct {
	BibNumber       models.BibNumber  `json:"bib_number"`
	Status          GalleryStatus     `json:"status"`
	Photos          []GalleryPhoto    `json:"photos"`
	SurveyCompleted bool              `json:"survey_completed"`
	UnlockedCount   int               `json:"unlocked_count"`
	Selection       *SelectionSummary `json:"selection"`
	Tiers           []pricing.Tier    `json:"pricing_tiers"`
}

// GalleryService assembles the per-bib photo page.
type GalleryService struct {
	store     Store
	access    *AccessLedger
	freshness *URLFreshness
}

func NewGalleryService(store Store, access *AccessLedger, freshness *URLFreshness) *GalleryService {
	return &GalleryService{store: store, access: access, freshness: freshness}
}

func (g *GalleryService) Get(ctx context.Context, bib models.BibNumber) (*Gallery, error) {
	photos, err := g.store.ListPhotosByBib(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}

	gallery := &Gallery{
		BibNumber: bib,
		Photos:    []GalleryPhoto{},
		Selection: summarize(nil),
		Tiers:     pricing.Tiers(),
	}
	if len(photos) == 0 {
		gallery.Status = GalleryNotFound
		return gallery, nil
	}

	active := make([]models.Photo, 0, len(photos))
	for _, p := range photos {
		if p.IsActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		gallery.Status = GalleryEmpty
		return gallery, nil
	}
	gallery.Status = GalleryOK

	ids := make([]uuid.UUID, len(active))
	for i, p := range active {
		ids[i] = p.ID
	}
	if err := g.access.Ensure(ctx, bib, ids); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("bib_number", bib.String()).Msg("Failed to initialize photo access")
	}

	access, err := g.access.ForBib(ctx, bib)
	if err != nil {
		return nil, err
	}
	selections, err := g.store.ListSelections(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load selections: %w", err)
	}
	state := make(map[uuid.UUID]bool, len(selections))
	for _, s := range selections {
		state[s.PhotoID] = s.IsSelected
	}

	_, err = g.store.GetSurvey(ctx, bib)
	switch {
	case err == nil:
		gallery.SurveyCompleted = true
	case !isNotFound(err):
		return nil, fmt.Errorf("failed to load survey: %w", err)
	}

	fresh := make([]models.Photo, len(active))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i, p := range active {
		eg.Go(func() error {
			fresh[i] = g.freshness.EnsureFresh(egCtx, p)
			return nil
		})
	}
	_ = eg.Wait()

	for _, p := range fresh {
		a := access[p.ID]
		selected, ok := state[p.ID]
		if !ok {
			selected = true
		}
		gp := GalleryPhoto{
			ID:           p.ID,
			PreviewURL:   p.PreviewURL,
			WatermarkURL: p.WatermarkURL,
			PhotoOrder:   p.PhotoOrder,
			AccessState:  a.State(),
			IsSelected:   selected,
			IsUnlocked:   a.IsUnlocked,
		}
		if a.IsUnlocked {
			gp.HighresURL = p.HighresURL
			gallery.UnlockedCount++
		}
		gallery.Photos = append(gallery.Photos, gp)
	}
	gallery.Selection = summarize(selectedIDs(active, state))
	return gallery, nil
}
