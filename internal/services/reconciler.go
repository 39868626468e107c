package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"race-photos-backend/internal/logging"
	"race-photos-backend/internal/metrics"
	"race-photos-backend/internal/models"
)

// Handled event types.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// Reconcile outcomes, also used as metric labels.
const (
	OutcomeCompleted       = "completed"
	OutcomeDuplicate       = "duplicate"
	OutcomeTransitioned    = "transitioned"
	OutcomeIgnored         = "ignored"
	OutcomeInvalidMetadata = "invalid_metadata"
	OutcomeNotFound        = "payment_not_found"
	OutcomeError           = "error"
)

type ReconcileResult struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Outcome   string    `json:"outcome"`
	PaymentID uuid.UUID `json:"payment_id,omitempty"`
	// Processed is true when this delivery changed payment state.
	Processed bool `json:"processed"`
}

// Reconciler applies verified payment provider events to payments and photo
// access. Every event is safe to replay.
type Reconciler struct {
	payments PaymentStore
	provider PaymentProvider
	attempts int
	backoff  time.Duration

	onCompleted func(ctx context.Context, payment *models.Payment)
}

func NewReconciler(payments PaymentStore, provider PaymentProvider, attempts int, backoff time.Duration) *Reconciler {
	if attempts < 1 {
		attempts = 1
	}
	return &Reconciler{payments: payments, provider: provider, attempts: attempts, backoff: backoff}
}

// OnCompleted registers fn to run in the background after a payment
// completes for the first time.
func (r *Reconciler) OnCompleted(fn func(ctx context.Context, payment *models.Payment)) {
	r.onCompleted = fn
}

// HandleEvent verifies and applies one webhook delivery. Only verification
// failures are returned as errors; everything after that is logged and
// reported through the result.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	event, err := r.provider.ParseWebhook(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, err
	}

	start := time.Now()
	logger := logging.FromContext(ctx).With().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Logger()

	result := &ReconcileResult{EventID: event.ID, EventType: event.Type}
	switch event.Type {
	case EventCheckoutCompleted:
		r.complete(ctx, &logger, event, true, result)
	case EventPaymentSucceeded:
		r.complete(ctx, &logger, event, false, result)
	case EventPaymentFailed:
		r.failIntent(ctx, &logger, event, result)
	case EventCheckoutExpired:
		r.expireSession(ctx, &logger, event, result)
	default:
		result.Outcome = OutcomeIgnored
		logger.Debug().Msg("Ignoring webhook event")
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, result.Outcome).Inc()
	metrics.WebhookDuration.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())
	return result, nil
}

func (r *Reconciler) complete(ctx context.Context, logger *zerolog.Logger, event *WebhookEvent, metadataRequired bool, result *ReconcileResult) {
	md, err := parseOrderMetadata(event.Metadata, metadataRequired)
	if err != nil {
		result.Outcome = OutcomeInvalidMetadata
		logger.Error().Err(err).Msg("Webhook event has unusable metadata")
		return
	}

	lookup := models.PaymentLookup{
		PaymentID:       md.PaymentID,
		SessionID:       event.SessionID,
		PaymentIntentID: event.PaymentIntentID,
	}
	if lookup.IsZero() {
		result.Outcome = OutcomeInvalidMetadata
		logger.Error().Msg("Webhook event carries no payment reference")
		return
	}

	var (
		payment *models.Payment
		changed bool
	)
	err = r.withLookupRetry(ctx, func() error {
		var err error
		payment, changed, err = r.payments.CompletePayment(ctx, lookup, models.PaymentCompletion{
			BibNumber:       md.BibNumber,
			PhotoIDs:        md.PhotoIDs,
			PaymentIntentID: event.PaymentIntentID,
		})
		return err
	})
	switch {
	case errors.Is(err, models.ErrRecordNotFound):
		result.Outcome = OutcomeNotFound
		logger.Error().Str("session_id", lookup.SessionID).Str("payment_intent_id", lookup.PaymentIntentID).
			Msg("No payment matches webhook event")
		return
	case errors.Is(err, models.ErrBibMismatch):
		result.Outcome = OutcomeInvalidMetadata
		logger.Error().Str("bib_number", md.BibNumber.String()).Msg("Webhook bib number does not match payment")
		return
	case err != nil:
		result.Outcome = OutcomeError
		logger.Error().Err(err).Msg("Failed to complete payment")
		return
	}

	result.PaymentID = payment.ID
	if !changed {
		result.Outcome = OutcomeDuplicate
		logger.Info().Str("payment_id", payment.ID.String()).Str("status", string(payment.Status)).
			Msg("Payment already settled, skipping")
		return
	}

	result.Outcome = OutcomeCompleted
	result.Processed = true
	unlocked := len(md.PhotoIDs)
	if unlocked == 0 {
		unlocked = len(payment.SelectedPhotoIDs)
	}
	metrics.PhotosUnlockedTotal.Add(float64(unlocked))
	logger.Info().
		Str("payment_id", payment.ID.String()).
		Str("bib_number", payment.BibNumber.String()).
		Int("photos_unlocked", unlocked).
		Msg("Payment completed")

	if r.onCompleted != nil {
		go r.onCompleted(context.WithoutCancel(ctx), payment)
	}
}

// expireSession cancels the pending payment of an abandoned checkout.
func (r *Reconciler) expireSession(ctx context.Context, logger *zerolog.Logger, event *WebhookEvent, result *ReconcileResult) {
	md, err := parseOrderMetadata(event.Metadata, false)
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring malformed metadata")
	}
	lookup := models.PaymentLookup{PaymentID: md.PaymentID, SessionID: event.SessionID}
	if lookup.IsZero() {
		result.Outcome = OutcomeInvalidMetadata
		logger.Error().Msg("Webhook event carries no payment reference")
		return
	}
	result.PaymentID = md.PaymentID
	r.transition(ctx, logger, lookup, models.PaymentCancelled, true, result)
}

// failIntent marks a payment failed only when the intent is already recorded
// on it. A decline inside hosted checkout leaves the session open for another
// card, so intents not yet stored are ignored and abandonment is left to
// checkout.session.expired.
func (r *Reconciler) failIntent(ctx context.Context, logger *zerolog.Logger, event *WebhookEvent, result *ReconcileResult) {
	if event.PaymentIntentID == "" {
		result.Outcome = OutcomeInvalidMetadata
		logger.Error().Msg("Webhook event carries no payment intent")
		return
	}
	lookup := models.PaymentLookup{PaymentIntentID: event.PaymentIntentID}
	r.transition(ctx, logger, lookup, models.PaymentFailed, false, result)
	if result.Outcome == OutcomeNotFound {
		result.Outcome = OutcomeIgnored
		logger.Info().Str("payment_intent_id", event.PaymentIntentID).
			Msg("Payment intent failed before completion, leaving checkout open")
	}
}

func (r *Reconciler) transition(ctx context.Context, logger *zerolog.Logger, lookup models.PaymentLookup, status models.PaymentStatus, retry bool, result *ReconcileResult) {
	var changed bool
	apply := func() error {
		var err error
		changed, err = r.payments.TransitionPayment(ctx, lookup, status)
		return err
	}
	var err error
	if retry {
		err = r.withLookupRetry(ctx, apply)
	} else {
		err = apply()
	}
	switch {
	case errors.Is(err, models.ErrRecordNotFound):
		result.Outcome = OutcomeNotFound
		if retry {
			logger.Warn().Msg("No payment matches webhook event")
		}
	case err != nil:
		result.Outcome = OutcomeError
		logger.Error().Err(err).Msg("Failed to update payment status")
	case !changed:
		result.Outcome = OutcomeDuplicate
	default:
		result.Outcome = OutcomeTransitioned
		result.Processed = true
		logger.Info().Str("status", string(status)).Msg("Payment status updated")
	}
}

// withLookupRetry retries fn while the payment row is not yet visible, which
// happens when the webhook races the checkout insert.
func (r *Reconciler) withLookupRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = fn()
		if !errors.Is(err, models.ErrRecordNotFound) || attempt == r.attempts {
			return err
		}
		if werr := sleepCtx(ctx, r.backoff*time.Duration(attempt)); werr != nil {
			return werr
		}
	}
	return err
}
