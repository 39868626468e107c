package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/pricing"
)

// SelectionSummary is the priced view of a bib's current selection.
type SelectionSummary struct {
	SelectedPhotoIDs []uuid.UUID     `json:"selected_photo_ids"`
	TotalSelected    int             `json:"total_selected"`
	PricePerPhoto    int64           `json:"price_per_photo"`
	TotalPrice       int64           `json:"total_price"`
	Savings          pricing.Savings `json:"savings"`
}

func summarize(ids []uuid.UUID) *SelectionSummary {
	n := len(ids)
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &SelectionSummary{
		SelectedPhotoIDs: ids,
		TotalSelected:    n,
		PricePerPhoto:    pricing.PricePerPhoto(n),
		TotalPrice:       pricing.TotalAmount(n),
		Savings:          pricing.CalculateSavings(n),
	}
}

// SelectionService keeps the server-side record of which photos a runner
// intends to buy. A photo without a selection row counts as selected, which
// matches the default written at upload.
type SelectionService struct {
	photos     PhotoStore
	selections SelectionStore
}

func NewSelectionService(photos PhotoStore, selections SelectionStore) *SelectionService {
	return &SelectionService{photos: photos, selections: selections}
}

func (s *SelectionService) SetSelected(ctx context.Context, bib models.BibNumber, photoID uuid.UUID, selected bool) (*SelectionSummary, error) {
	if _, err := requireOwned(ctx, s.photos, bib, []uuid.UUID{photoID}); err != nil {
		return nil, err
	}
	if err := s.selections.UpsertSelection(ctx, bib, photoID, selected); err != nil {
		return nil, err
	}
	return s.Summary(ctx, bib)
}

// Toggle flips the persisted selection state of one photo.
func (s *SelectionService) Toggle(ctx context.Context, bib models.BibNumber, photoID uuid.UUID) (*SelectionSummary, error) {
	if _, err := requireOwned(ctx, s.photos, bib, []uuid.UUID{photoID}); err != nil {
		return nil, err
	}

	state, err := s.states(ctx, bib)
	if err != nil {
		return nil, err
	}
	current, ok := state[photoID]
	if !ok {
		current = true
	}

	if err := s.selections.UpsertSelection(ctx, bib, photoID, !current); err != nil {
		return nil, err
	}
	return s.Summary(ctx, bib)
}

// ReplaceSelection makes ids the complete selection for bib.
func (s *SelectionService) ReplaceSelection(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) (*SelectionSummary, error) {
	ids = uniqueIDs(ids)
	if len(ids) > 0 {
		if _, err := requireOwned(ctx, s.photos, bib, ids); err != nil {
			return nil, err
		}
	}
	if err := s.selections.ReplaceSelections(ctx, bib, ids); err != nil {
		return nil, err
	}
	return s.Summary(ctx, bib)
}

// SelectAll selects every active photo of bib.
func (s *SelectionService) SelectAll(ctx context.Context, bib models.BibNumber) (*SelectionSummary, error) {
	photos, err := s.photos.ListPhotosByBib(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}
	if len(photos) == 0 {
		return nil, ErrBibNotFound
	}

	ids := make([]uuid.UUID, 0, len(photos))
	for _, p := range photos {
		if p.IsActive {
			ids = append(ids, p.ID)
		}
	}
	if err := s.selections.ReplaceSelections(ctx, bib, ids); err != nil {
		return nil, err
	}
	return s.Summary(ctx, bib)
}

func (s *SelectionService) DeselectAll(ctx context.Context, bib models.BibNumber) (*SelectionSummary, error) {
	if err := s.selections.ReplaceSelections(ctx, bib, nil); err != nil {
		return nil, err
	}
	return s.Summary(ctx, bib)
}

// Summary prices the selected, active photos of bib.
func (s *SelectionService) Summary(ctx context.Context, bib models.BibNumber) (*SelectionSummary, error) {
	photos, err := s.photos.ListPhotosByBib(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}
	state, err := s.states(ctx, bib)
	if err != nil {
		return nil, err
	}
	return summarize(selectedIDs(photos, state)), nil
}

func (s *SelectionService) states(ctx context.Context, bib models.BibNumber) (map[uuid.UUID]bool, error) {
	rows, err := s.selections.ListSelections(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load selections: %w", err)
	}
	state := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		state[r.PhotoID] = r.IsSelected
	}
	return state, nil
}

func selectedIDs(photos []models.Photo, state map[uuid.UUID]bool) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(photos))
	for _, p := range photos {
		if !p.IsActive {
			continue
		}
		if selected, ok := state[p.ID]; ok && !selected {
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids
}
