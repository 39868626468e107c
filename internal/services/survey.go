package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/models"
)

type SurveySubmission struct {
	BibNumber             models.BibNumber
	PhotoIDs              []uuid.UUID
	RunnerName            string
	RunnerEmail           string
	SocialMediaPreference string
	WaitingStopsBuying    string
	MarketingConsent      bool
}

type SurveyResult struct {
	Response         *models.SurveyResponse
	AlreadyCompleted bool
	// Warnings lists follow-up steps that failed after the response was
	// saved.
	Warnings []string
}

// SurveyService records the one survey a bib must complete before checkout.
type SurveyService struct {
	photos  PhotoStore
	surveys SurveyStore
	access  *AccessLedger
	now     func() time.Time
}

func NewSurveyService(photos PhotoStore, surveys SurveyStore, access *AccessLedger) *SurveyService {
	return &SurveyService{photos: photos, surveys: surveys, access: access, now: time.Now}
}

func (s *SurveyService) Submit(ctx context.Context, sub SurveySubmission) (*SurveyResult, error) {
	ids := uniqueIDs(sub.PhotoIDs)
	name := strings.TrimSpace(sub.RunnerName)
	address := strings.TrimSpace(sub.RunnerEmail)

	if len(ids) == 0 {
		return nil, ErrNoPhotosSelected
	}
	if name == "" || address == "" {
		return nil, ErrMissingFields
	}
	if parsed, err := mail.ParseAddress(address); err != nil || parsed.Address != address {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if sub.SocialMediaPreference != models.SocialMediaPosed && sub.SocialMediaPreference != models.SocialMediaAction {
		return nil, fmt.Errorf("%w: social_media_preference", ErrInvalidAnswer)
	}
	if sub.WaitingStopsBuying != models.WaitingStopsBuyingYes && sub.WaitingStopsBuying != models.WaitingStopsBuyingNo {
		return nil, fmt.Errorf("%w: waiting_stops_buying", ErrInvalidAnswer)
	}

	if _, err := requireOwned(ctx, s.photos, sub.BibNumber, ids); err != nil {
		return nil, err
	}

	existing, err := s.surveys.GetSurvey(ctx, sub.BibNumber)
	switch {
	case err == nil:
		return &SurveyResult{Response: existing, AlreadyCompleted: true}, nil
	case !isNotFound(err):
		return nil, fmt.Errorf("failed to check existing survey: %w", err)
	}

	resp := &models.SurveyResponse{
		ID:                    uuid.New(),
		BibNumber:             sub.BibNumber,
		SelectedPhotoIDs:      ids,
		RunnerName:            name,
		RunnerEmail:           address,
		SocialMediaPreference: sub.SocialMediaPreference,
		WaitingStopsBuying:    sub.WaitingStopsBuying,
		MarketingConsent:      sub.MarketingConsent,
		CompletedAt:           s.now().UTC(),
	}
	created, err := s.surveys.CreateSurvey(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to save survey: %w", err)
	}
	if !created {
		// Lost a race with a concurrent submission for the same bib.
		existing, err := s.surveys.GetSurvey(ctx, sub.BibNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing survey: %w", err)
		}
		return &SurveyResult{Response: existing, AlreadyCompleted: true}, nil
	}

	result := &SurveyResult{Response: resp}
	if err := s.access.MarkSurveyed(ctx, sub.BibNumber, ids); err != nil {
		logging.FromContext(ctx).Error().Err(err).
			Str("bib_number", sub.BibNumber.String()).
			Msg("Survey saved but photo access was not updated")
		result.Warnings = append(result.Warnings, "photo access could not be updated")
	}
	return result, nil
}

// Get returns the survey of bib.
func (s *SurveyService) Get(ctx context.Context, bib models.BibNumber) (*models.SurveyResponse, error) {
	resp, err := s.surveys.GetSurvey(ctx, bib)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}
	return resp, nil
}
