package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/metrics"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/pricing"
)

type CheckoutResult struct {
	URL           string    `json:"checkout_url"`
	SessionID     string    `json:"session_id"`
	PaymentID     uuid.UUID `json:"payment_id"`
	PhotoCount    int       `json:"photo_count"`
	PricePerPhoto int64     `json:"price_per_photo"`
	TotalAmount   int64     `json:"total_amount"`
	Currency      string    `json:"currency"`
}

// CheckoutService turns a surveyed selection into a hosted checkout session
// and a pending payment.
type CheckoutService struct {
	store    Store
	provider PaymentProvider
	currency string
	baseURL  string
	now      func() time.Time
}

func NewCheckoutService(store Store, provider PaymentProvider, currency, baseURL string) *CheckoutService {
	return &CheckoutService{
		store:    store,
		provider: provider,
		currency: currency,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

func (s *CheckoutService) Create(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) (*CheckoutResult, error) {
	result, err := s.create(ctx, bib, photoIDs)
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.CheckoutSessionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return result, nil
}

func (s *CheckoutService) create(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) (*CheckoutResult, error) {
	ids := uniqueIDs(photoIDs)
	if len(ids) == 0 {
		return nil, ErrNoPhotosSelected
	}
	if !pricing.ValidPhotoCount(len(ids)) {
		return nil, ErrTooManyPhotos
	}
	if _, err := requireOwned(ctx, s.store, bib, ids); err != nil {
		return nil, err
	}

	survey, err := s.store.GetSurvey(ctx, bib)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSurveyRequired
		}
		return nil, fmt.Errorf("failed to check survey: %w", err)
	}

	access, err := s.store.ListAccess(ctx, bib)
	if err != nil {
		return nil, fmt.Errorf("failed to load photo access: %w", err)
	}
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, a := range access {
		if _, ok := wanted[a.PhotoID]; ok && a.PaymentCompleted {
			return nil, ErrAlreadyPaid
		}
	}

	count := len(ids)
	perPhoto := pricing.PricePerPhoto(count)
	paymentID := uuid.New()

	session, err := s.provider.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		PaymentID:     paymentID,
		BibNumber:     bib,
		PhotoIDs:      ids,
		PricePerPhoto: perPhoto,
		Currency:      s.currency,
		SuccessURL:    fmt.Sprintf("%s/success/%s?session_id={CHECKOUT_SESSION_ID}", s.baseURL, bib),
		CancelURL:     fmt.Sprintf("%s/photo/%s/unlock", s.baseURL, bib),
		CustomerEmail: survey.RunnerEmail,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:               paymentID,
		BibNumber:        bib,
		SelectedPhotoIDs: ids,
		StripeSessionID:  session.ID,
		TotalPhotos:      count,
		PricePerPhoto:    perPhoto,
		TotalAmount:      pricing.TotalAmount(count),
		Currency:         s.currency,
		Status:           models.PaymentPending,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		logging.FromContext(ctx).Error().Err(err).
			Str("session_id", session.ID).
			Str("bib_number", bib.String()).
			Msg("Checkout session created but payment was not recorded")
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	logging.FromContext(ctx).Info().
		Str("payment_id", paymentID.String()).
		Str("bib_number", bib.String()).
		Int("photo_count", count).
		Int64("total_amount", payment.TotalAmount).
		Msg("Checkout session created")

	return &CheckoutResult{
		URL:           session.URL,
		SessionID:     session.ID,
		PaymentID:     paymentID,
		PhotoCount:    count,
		PricePerPhoto: perPhoto,
		TotalAmount:   payment.TotalAmount,
		Currency:      s.currency,
	}, nil
}

// PaymentBySession returns the payment created for a checkout session, used
// by the success page.
func (s *CheckoutService) PaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	payment, err := s.store.GetPaymentBySession(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}
