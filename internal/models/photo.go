package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID           uuid.UUID       `json:"id"`
	BibNumber    BibNumber       `json:"bib_number"`
	PreviewURL   string          `json:"preview_url"`
	HighresURL   string          `json:"highres_url"`
	WatermarkURL *string         `json:"watermark_url,omitempty"`
	PhotoOrder   int             `json:"photo_order"`
	IsActive     bool            `json:"is_active"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	UploadedAt   time.Time       `json:"uploaded_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// LastSignedAt is the most recent time the photo's URLs were written.
func (p Photo) LastSignedAt() time.Time {
	if p.UpdatedAt.After(p.UploadedAt) {
		return p.UpdatedAt
	}
	return p.UploadedAt
}

// AccessState is the derived unlock state of a photo for its bib.
type AccessState string

const (
	AccessLockedNoSurvey AccessState = "locked_no_survey"
	AccessLockedSurveyed AccessState = "locked_surveyed"
	AccessUnlocked       AccessState = "unlocked"
)

type PhotoAccess struct {
	ID               uuid.UUID  `json:"id"`
	PhotoID          uuid.UUID  `json:"photo_id"`
	BibNumber        BibNumber  `json:"bib_number"`
	SurveyCompleted  bool       `json:"survey_completed"`
	PaymentCompleted bool       `json:"payment_completed"`
	IsUnlocked       bool       `json:"is_unlocked"`
	UnlockedAt       *time.Time `json:"unlocked_at,omitempty"`
	DownloadCount    int        `json:"download_count"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (a PhotoAccess) State() AccessState {
	switch {
	case a.IsUnlocked:
		return AccessUnlocked
	case a.SurveyCompleted:
		return AccessLockedSurveyed
	default:
		return AccessLockedNoSurvey
	}
}

type PhotoSelection struct {
	ID         uuid.UUID `json:"id"`
	BibNumber  BibNumber `json:"bib_number"`
	PhotoID    uuid.UUID `json:"photo_id"`
	IsSelected bool      `json:"is_selected"`
	CreatedAt  time.Time `json:"created_at"`
}

// UnlockedPhoto pairs a photo with its unlocked access row.
type UnlockedPhoto struct {
	Photo  Photo
	Access PhotoAccess
}
