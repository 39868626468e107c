package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/email"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/metrics"
	"race-photos-backend/internal/models"
)

type DeliveryResult struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	MessageID   string    `json:"message_id,omitempty"`
	Recipient   string    `json:"recipient"`
	PhotoCount  int       `json:"photo_count"`
	Attempts    int       `json:"attempts"`
	AlreadySent bool      `json:"already_sent"`
}

// DeliveryService emails purchased photos as a zip attachment.
type DeliveryService struct {
	store     Store
	downloads *DownloadService
	mailer    Mailer
	baseURL   string
	attempts  int
	delay     time.Duration
}

func NewDeliveryService(store Store, downloads *DownloadService, mailer Mailer, baseURL string, attempts int, delay time.Duration) *DeliveryService {
	return &DeliveryService{
		store:     store,
		downloads: downloads,
		mailer:    mailer,
		baseURL:   baseURL,
		attempts:  attempts,
		delay:     delay,
	}
}

// Send delivers the photos of a completed payment. The send is claimed on the
// payment first, so concurrent callers mail at most once. Unless force is set,
// a payment that was already claimed is reported as AlreadySent.
func (s *DeliveryService) Send(ctx context.Context, paymentID uuid.UUID, force bool) (*DeliveryResult, error) {
	logger := logging.FromContext(ctx).With().Str("payment_id", paymentID.String()).Logger()

	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.Status != models.PaymentCompleted {
		return nil, ErrPaymentIncomplete
	}

	result := &DeliveryResult{PaymentID: payment.ID}
	claimed, err := s.store.ClaimEmailSend(ctx, payment.ID, force)
	if err != nil {
		return nil, err
	}
	if !claimed {
		result.AlreadySent = true
		metrics.EmailDeliveriesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return result, nil
	}
	sent := false
	defer func() {
		if sent {
			return
		}
		if err := s.store.ReleaseEmailClaim(context.WithoutCancel(ctx), payment.ID); err != nil {
			logger.Warn().Err(err).Msg("Failed to release email claim")
		}
	}()

	survey, err := s.store.GetSurvey(ctx, payment.BibNumber)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoRecipient
		}
		return nil, fmt.Errorf("failed to load survey: %w", err)
	}
	if strings.TrimSpace(survey.RunnerEmail) == "" {
		return nil, ErrNoRecipient
	}
	result.Recipient = survey.RunnerEmail

	archive, err := s.downloads.ZipPhotos(ctx, payment.BibNumber, payment.SelectedPhotoIDs)
	if err != nil {
		metrics.EmailDeliveriesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	result.PhotoCount = archive.Included

	purchased := payment.CreatedAt
	if payment.CompletedAt != nil {
		purchased = *payment.CompletedAt
	}
	html, err := email.RenderDelivery(email.DeliveryData{
		RunnerName:   survey.RunnerName,
		BibNumber:    payment.BibNumber.String(),
		PhotoCount:   archive.Included,
		PurchaseDate: purchased,
		DownloadURL:  fmt.Sprintf("%s/photo/%s", s.baseURL, payment.BibNumber),
	})
	if err != nil {
		return nil, err
	}

	msg := email.Message{
		To:      survey.RunnerEmail,
		Subject: email.DeliverySubject(payment.BibNumber.String()),
		HTML:    html,
		Attachments: []email.Attachment{{
			Filename:    archive.Filename,
			Content:     archive.Data,
			ContentType: "application/zip",
		}},
	}

	id, attempts, sendErr := email.SendWithRetry(ctx, s.mailer, msg, s.attempts, s.delay)
	result.Attempts = attempts
	if errors.Is(sendErr, email.ErrPermanent) {
		metrics.EmailDeliveriesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.Error().Err(sendErr).Msg("Delivery email rejected before sending")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, sendErr)
	}
	if err := s.store.IncrementEmailAttempts(ctx, payment.ID, attempts); err != nil {
		logger.Warn().Err(err).Msg("Failed to record email attempts")
	}
	if sendErr != nil {
		metrics.EmailDeliveriesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.Error().Err(sendErr).Int("attempts", attempts).Msg("Delivery email failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, sendErr)
	}
	sent = true

	if err := s.store.MarkEmailSent(ctx, payment.ID); err != nil {
		logger.Warn().Err(err).Msg("Delivery email sent but not recorded")
	}
	metrics.EmailDeliveriesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.Info().Str("message_id", id).Int("photo_count", archive.Included).Msg("Delivery email sent")

	result.MessageID = id
	return result, nil
}

// AutoSend is the reconciler hook run after a payment completes.
func (s *DeliveryService) AutoSend(ctx context.Context, payment *models.Payment) {
	if _, err := s.Send(ctx, payment.ID, false); err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("payment_id", payment.ID.String()).Msg("Automatic delivery email failed")
	}
}
