package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SocialMediaPosed  = "posed"
	SocialMediaAction = "action"

	WaitingStopsBuyingYes = "yes"
	WaitingStopsBuyingNo  = "no"
)

type SurveyResponse struct {
	ID                    uuid.UUID   `json:"id"`
	BibNumber             BibNumber   `json:"bib_number"`
	SelectedPhotoIDs      []uuid.UUID `json:"selected_photo_ids"`
	RunnerName            string      `json:"runner_name"`
	RunnerEmail           string      `json:"runner_email"`
	SocialMediaPreference string      `json:"social_media_preference"`
	WaitingStopsBuying    string      `json:"waiting_stops_buying"`
	MarketingConsent      bool        `json:"marketing_consent"`
	CompletedAt           time.Time   `json:"completed_at"`
}
