package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/payments"
	"race-photos-backend/internal/services"
	"race-photos-backend/internal/testutil"
)

const webhookSecret = "whsec_test_services"

// harness wires every service against in-memory fakes. Webhooks go through
// the real Stripe signature verification.
type harness struct {
	store    *testutil.MemoryStore
	storage  *testutil.FakeStorage
	fetcher  *testutil.FakeFetcher
	provider *testutil.FakeProvider
	mailer   *testutil.FakeMailer

	access     *services.AccessLedger
	freshness  *services.URLFreshness
	surveys    *services.SurveyService
	checkout   *services.CheckoutService
	reconciler *services.Reconciler
	downloads  *services.DownloadService
	delivery   *services.DeliveryService
	admin      *services.AdminService
	gallery    *services.GalleryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   testutil.NewMemoryStore(),
		storage: testutil.NewFakeStorage(),
		mailer:  &testutil.FakeMailer{},
	}
	h.fetcher = &testutil.FakeFetcher{Storage: h.storage}
	stripe := payments.NewStripeProvider("sk_test_services", webhookSecret)
	h.provider = &testutil.FakeProvider{ParseFunc: stripe.ParseWebhook}

	h.access = services.NewAccessLedger(h.store)
	h.freshness = services.NewURLFreshness(h.store, h.storage, 6*24*time.Hour, 7*24*time.Hour)
	h.surveys = services.NewSurveyService(h.store, h.store, h.access)
	h.checkout = services.NewCheckoutService(h.store, h.provider, "usd", "https://photos.example.com")
	h.reconciler = services.NewReconciler(h.store, h.provider, 3, time.Millisecond)
	h.downloads = services.NewDownloadService(h.access, h.freshness, h.fetcher, 2)
	h.delivery = services.NewDeliveryService(h.store, h.downloads, h.mailer, "https://photos.example.com", 3, time.Millisecond)
	h.admin = services.NewAdminService(h.store, h.storage, 365*24*time.Hour)
	h.gallery = services.NewGalleryService(h.store, h.access, h.freshness)
	return h
}

func ids(photos []models.Photo) []uuid.UUID {
	out := make([]uuid.UUID, len(photos))
	for i, p := range photos {
		out[i] = p.ID
	}
	return out
}

// surveyed seeds n photos for bib and submits the survey.
func (h *harness) surveyed(t *testing.T, bib models.BibNumber, n int) []models.Photo {
	t.Helper()
	photos := testutil.SeedBib(h.store, h.storage, bib, n)
	_, err := h.surveys.Submit(context.Background(), validSubmission(bib, photos))
	require.NoError(t, err)
	return photos
}

// purchase runs checkout for photos and returns the pending payment.
func (h *harness) purchase(t *testing.T, bib models.BibNumber, photos []models.Photo) *services.CheckoutResult {
	t.Helper()
	result, err := h.checkout.Create(context.Background(), bib, ids(photos))
	require.NoError(t, err)
	return result
}

// signedEvent builds a signed Stripe webhook delivery.
func signedEvent(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + uuid.NewString()[:8],
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-07-30.basil",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	s := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return s.Payload, s.Header
}

// completedEvent is the checkout.session.completed delivery for a checkout.
func completedEvent(t *testing.T, bib models.BibNumber, result *services.CheckoutResult, photoIDs []uuid.UUID) ([]byte, string) {
	t.Helper()
	encoded, err := json.Marshal(photoIDs)
	require.NoError(t, err)
	return signedEvent(t, services.EventCheckoutCompleted, map[string]any{
		"id":             result.SessionID,
		"object":         "checkout.session",
		"payment_intent": "pi_" + result.SessionID,
		"payment_status": "paid",
		"metadata": map[string]string{
			services.MetadataPaymentID:        result.PaymentID.String(),
			services.MetadataBibNumber:        bib.String(),
			services.MetadataSelectedPhotoIDs: string(encoded),
			services.MetadataPhotoCount:       fmt.Sprint(len(photoIDs)),
			services.MetadataPricePerPhoto:    fmt.Sprint(result.PricePerPhoto),
		},
	})
}

// paid runs survey, checkout and a completed webhook for n photos of bib.
func (h *harness) paid(t *testing.T, bib models.BibNumber, n int) ([]models.Photo, *services.CheckoutResult) {
	t.Helper()
	photos := h.surveyed(t, bib, n)
	result := h.purchase(t, bib, photos)
	body, sig := completedEvent(t, bib, result, ids(photos))
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, services.OutcomeCompleted, res.Outcome)
	return photos, result
}
