package models

type SetSelectionRequest struct {
	PhotoID    string `json:"photo_id" binding:"required,uuid" example:"3f8e2a1c-1b2c-4d5e-8f90-123456789abc"`
	IsSelected *bool  `json:"is_selected" binding:"required" example:"true"`
}

type ToggleSelectionRequest struct {
	PhotoID string `json:"photo_id" binding:"required,uuid"`
}

type ReplaceSelectionRequest struct {
	SelectedPhotoIDs []string `json:"selected_photo_ids" binding:"dive,uuid"`
}

type SurveyRequest struct {
	BibNumber        string   `json:"bib_number" binding:"required" example:"1001"`
	SelectedPhotoIDs []string `json:"selected_photo_ids" binding:"required,min=1,dive,uuid"`
	RunnerName       string   `json:"runner_name" binding:"required" example:"Jane Runner"`
	RunnerEmail      string   `json:"runner_email" binding:"required,email" example:"jane@example.com"`
	// SocialMediaPreference is "posed" or "action".
	SocialMediaPreference string `json:"social_media_preference" binding:"required,oneof=posed action" example:"action"`
	// WaitingStopsBuying is "yes" or "no".
	WaitingStopsBuying string `json:"waiting_stops_buying" binding:"required,oneof=yes no" example:"no"`
	MarketingConsent   bool   `json:"marketing_consent"`
}

type CheckoutRequest struct {
	BibNumber        string   `json:"bib_number" binding:"required" example:"1001"`
	SelectedPhotoIDs []string `json:"selected_photo_ids" binding:"required,min=1,dive,uuid"`
}

type SendEmailRequest struct {
	PaymentID   string `json:"payment_id" binding:"required,uuid"`
	ForceResend bool   `json:"force_resend"`
}

type RefreshURLRequest struct {
	PhotoID string `json:"photo_id" binding:"required,uuid"`
}
