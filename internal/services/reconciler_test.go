package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

func TestReconcileCompletedSession(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 1)
	checkout := h.purchase(t, "1001", photos)

	body, sig := completedEvent(t, "1001", checkout, ids(photos))
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeCompleted, res.Outcome)
	assert.True(t, res.Processed)
	assert.Equal(t, checkout.PaymentID, res.PaymentID)

	payment, err := h.store.GetPayment(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	require.NotNil(t, payment.CompletedAt)
	assert.Equal(t, "pi_"+checkout.SessionID, payment.StripePaymentIntentID)

	access, ok := h.store.Access("1001", photos[0].ID)
	require.True(t, ok)
	assert.Equal(t, models.AccessUnlocked, access.State())
	assert.True(t, access.PaymentCompleted)
	require.NotNil(t, access.UnlockedAt)

	items, err := h.store.ListOrderItems(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1499), items[0].PricePaid)
}

func TestReconcileReplayIsNoop(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "2002", 5)
	checkout := h.purchase(t, "2002", photos)
	body, sig := completedEvent(t, "2002", checkout, ids(photos))

	first, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	require.True(t, first.Processed)

	before, err := h.store.GetPayment(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	unlockedAt, _ := h.store.Access("2002", photos[0].ID)

	second, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.Equal(t, services.OutcomeDuplicate, second.Outcome)

	after, err := h.store.GetPayment(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, before.CompletedAt, after.CompletedAt)

	items, err := h.store.ListOrderItems(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	for _, item := range items {
		assert.Equal(t, int64(999), item.PricePaid)
	}

	again, _ := h.store.Access("2002", photos[0].ID)
	assert.Equal(t, unlockedAt.UnlockedAt, again.UnlockedAt)
}

func TestReconcileConcurrentDeliveries(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "3003", 3)
	checkout := h.purchase(t, "3003", photos)
	body, sig := completedEvent(t, "3003", checkout, ids(photos))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
			if err == nil && res.Processed {
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, processed)
	items, err := h.store.ListOrderItems(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestReconcileInvalidSignature(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 1)
	checkout := h.purchase(t, "1001", photos)
	body, _ := completedEvent(t, "1001", checkout, ids(photos))

	_, err := h.reconciler.HandleEvent(context.Background(), body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, services.ErrInvalidSignature)

	_, err = h.reconciler.HandleEvent(context.Background(), body, "")
	assert.ErrorIs(t, err, services.ErrInvalidSignature)

	payment, err := h.store.GetPayment(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
	_, ok := h.store.Access("1001", photos[0].ID)
	assert.True(t, ok)
	access, _ := h.store.Access("1001", photos[0].ID)
	assert.False(t, access.IsUnlocked)
}

func TestReconcileMalformedMetadataIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 1)
	checkout := h.purchase(t, "1001", photos)

	body, sig := signedEvent(t, services.EventCheckoutCompleted, map[string]any{
		"id":       checkout.SessionID,
		"object":   "checkout.session",
		"metadata": map[string]string{services.MetadataBibNumber: "1001", services.MetadataSelectedPhotoIDs: "not-json"},
	})
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeInvalidMetadata, res.Outcome)

	payment, err := h.store.GetPayment(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
}

func TestReconcileBibMismatch(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 1)
	checkout := h.purchase(t, "1001", photos)

	body, sig := completedEvent(t, "9999", checkout, ids(photos))
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeInvalidMetadata, res.Outcome)

	access, _ := h.store.Access("1001", photos[0].ID)
	assert.False(t, access.IsUnlocked)
}

func TestReconcileUnknownPayment(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 1)
	missing := &services.CheckoutResult{SessionID: "cs_missing", PaymentID: uuid.New(), PricePerPhoto: 1499}

	body, sig := completedEvent(t, "1001", missing, ids(photos))
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeNotFound, res.Outcome)
	assert.False(t, res.Processed)
}

func TestReconcilePaymentIntentFallback(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 2)
	checkout := h.purchase(t, "1001", photos)

	body, sig := signedEvent(t, services.EventPaymentSucceeded, map[string]any{
		"id":       "pi_123",
		"object":   "payment_intent",
		"metadata": map[string]string{services.MetadataPaymentID: checkout.PaymentID.String()},
	})
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeCompleted, res.Outcome)

	payment, err := h.store.GetPayment(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	assert.Equal(t, "pi_123", payment.StripePaymentIntentID)

	items, err := h.store.ListOrderItems(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReconcileDeclineThenRetryInCheckout(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 2)
	checkout := h.purchase(t, "1001", photos)

	// The first card is declined inside the hosted page. The intent carries
	// the session metadata but is not yet recorded on the payment.
	body, sig := signedEvent(t, services.EventPaymentFailed, map[string]any{
		"id":       "pi_" + checkout.SessionID,
		"object":   "payment_intent",
		"metadata": map[string]string{services.MetadataPaymentID: checkout.PaymentID.String()},
	})
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeIgnored, res.Outcome)

	payment, err := h.store.GetPayment(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)

	// The runner retries with another card on the same session.
	body, sig = completedEvent(t, "1001", checkout, ids(photos))
	res, err = h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeCompleted, res.Outcome)

	for _, p := range photos {
		access, _ := h.store.Access("1001", p.ID)
		assert.True(t, access.IsUnlocked)
	}
	items, err := h.store.ListOrderItems(context.Background(), checkout.PaymentID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReconcileFailedIntentAfterCompletion(t *testing.T) {
	h := newHarness(t)
	photos, checkout := h.paid(t, "1001", 1)

	body, sig := signedEvent(t, services.EventPaymentFailed, map[string]any{
		"id":     "pi_" + checkout.SessionID,
		"object": "payment_intent",
	})
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeDuplicate, res.Outcome)

	payment, _ := h.store.GetPayment(context.Background(), checkout.PaymentID)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	access, _ := h.store.Access("1001", photos[0].ID)
	assert.True(t, access.IsUnlocked)
}

func TestReconcileExpired(t *testing.T) {
	h := newHarness(t)
	photos := h.surveyed(t, "1001", 1)
	expired := h.purchase(t, "1001", photos)

	body, sig := signedEvent(t, services.EventCheckoutExpired, map[string]any{
		"id":     expired.SessionID,
		"object": "checkout.session",
	})
	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeTransitioned, res.Outcome)

	payment, _ := h.store.GetPayment(context.Background(), expired.PaymentID)
	assert.Equal(t, models.PaymentCancelled, payment.Status)

	// A late completion cannot resurrect a cancelled checkout.
	body, sig = completedEvent(t, "1001", expired, ids(photos))
	res, err = h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeDuplicate, res.Outcome)
	access, _ := h.store.Access("1001", photos[0].ID)
	assert.False(t, access.IsUnlocked)
}

func TestReconcileIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t)
	body, sig := signedEvent(t, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	res, err := h.reconciler.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeIgnored, res.Outcome)
}

func TestReconcileOnCompletedHook(t *testing.T) {
	h := newHarness(t)
	done := make(chan *models.Payment, 1)
	h.reconciler.OnCompleted(func(ctx context.Context, p *models.Payment) { done <- p })

	_, checkout := h.paid(t, "1001", 1)

	select {
	case p := <-done:
		assert.Equal(t, checkout.PaymentID, p.ID)
	case <-time.After(time.Second):
		t.Fatal("completion hook not called")
	}
}
