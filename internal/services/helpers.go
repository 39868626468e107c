package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/models"
)

// uniqueIDs drops duplicates while keeping first-seen order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// requireOwned returns the active photos for ids, failing unless every id is
// an active photo of bib.
func requireOwned(ctx context.Context, photos PhotoStore, bib models.BibNumber, ids []uuid.UUID) ([]models.Photo, error) {
	found, err := photos.GetActivePhotos(ctx, bib, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}
	if len(found) != len(ids) {
		return nil, ErrPhotoOwnership
	}
	return found, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrRecordNotFound)
}

// shortID is the last eight characters of id, used in download filenames.
func shortID(id uuid.UUID) string {
	s := id.String()
	return s[len(s)-8:]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
