package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/models"
)

// AccessLedger tracks per-photo unlock state for a bib. Photos only move
// forward: locked, surveyed, unlocked. Unlocking happens inside payment
// completion, never here.
type AccessLedger struct {
	store AccessStore
}

func NewAccessLedger(store AccessStore) *AccessLedger {
	return &AccessLedger{store: store}
}

// Ensure creates missing access rows with every flag false.
func (l *AccessLedger) Ensure(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error {
	return l.store.EnsureAccess(ctx, bib, photoIDs)
}

func (l *AccessLedger) MarkSurveyed(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error {
	return l.store.MarkSurveyCompleted(ctx, bib, photoIDs)
}

// ForBib returns the access rows of bib keyed by photo id.
func (l *AccessLedger) ForBib(ctx context.Context, bib models.BibNumber) (map[uuid.UUID]models.PhotoAccess, error) {
	rows, err := l.store.ListAccess(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load photo access: %w", err)
	}
	out := make(map[uuid.UUID]models.PhotoAccess, len(rows))
	for _, r := range rows {
		out[r.PhotoID] = r
	}
	return out, nil
}

func (l *AccessLedger) Unlocked(ctx context.Context, bib models.BibNumber) ([]models.UnlockedPhoto, error) {
	photos, err := l.store.ListUnlocked(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked photos: %w", err)
	}
	return photos, nil
}

// RecordDownloads bumps the download counter of each access row. Call it only
// once the bytes have reached the client.
func (l *AccessLedger) RecordDownloads(ctx context.Context, accessIDs []uuid.UUID) error {
	if err := l.store.RecordDownloads(ctx, accessIDs); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Int("count", len(accessIDs)).Msg("Failed to record downloads")
		return err
	}
	return nil
}
