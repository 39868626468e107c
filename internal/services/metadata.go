package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"race-photos-backend/internal/models"
)

// Metadata keys written on checkout sessions and their payment intents.
const (
	MetadataPaymentID        = "payment_id"
	MetadataBibNumber        = "bib_number"
	MetadataSelectedPhotoIDs = "selected_photo_ids"
	MetadataPhotoCount       = "photo_count"
	MetadataPricePerPhoto    = "price_per_photo"
)

// orderMetadata is the order identity carried on a provider event.
type orderMetadata struct {
	PaymentID uuid.UUID
	BibNumber models.BibNumber
	PhotoIDs  []uuid.UUID
}

// parseOrderMetadata decodes event metadata. With required set, the bib
// number and a non-empty photo id list must be present.
func parseOrderMetadata(md map[string]string, required bool) (orderMetadata, error) {
	var out orderMetadata

	if raw := strings.TrimSpace(md[MetadataPaymentID]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return out, fmt.Errorf("invalid %s: %w", MetadataPaymentID, err)
		}
		out.PaymentID = id
	}

	if raw := md[MetadataBibNumber]; strings.TrimSpace(raw) != "" {
		bib, err := models.ParseBibNumber(raw)
		if err != nil {
			return out, fmt.Errorf("invalid %s: %w", MetadataBibNumber, err)
		}
		out.BibNumber = bib
	} else if required {
		return out, fmt.Errorf("missing %s", MetadataBibNumber)
	}

	if raw := strings.TrimSpace(md[MetadataSelectedPhotoIDs]); raw != "" {
		var ids []uuid.UUID
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return out, fmt.Errorf("invalid %s: %w", MetadataSelectedPhotoIDs, err)
		}
		out.PhotoIDs = uniqueIDs(ids)
	}
	if required && len(out.PhotoIDs) == 0 {
		return out, fmt.Errorf("missing %s", MetadataSelectedPhotoIDs)
	}

	return out, nil
}
