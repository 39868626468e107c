package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"race-photos-backend/internal/models"
	"race-photos-backend/internal/services"
)

const testSecret = "whsec_test_123"

func signed(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	s := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return s.Payload, s.Header
}

func TestCreateCheckoutSession(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret)

	var captured *stripelib.CheckoutSessionParams
	p.createCheckoutSession = func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error) {
		captured = params
		return &stripelib.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	paymentID := uuid.New()
	sess, err := p.CreateCheckoutSession(context.Background(), services.CheckoutSessionRequest{
		PaymentID:     paymentID,
		BibNumber:     models.BibNumber("2002"),
		PhotoIDs:      ids,
		PricePerPhoto: 999,
		Currency:      "usd",
		SuccessURL:    "https://photos.example.com/success/2002?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://photos.example.com/photo/2002/unlock",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)

	require.NotNil(t, captured)
	assert.Equal(t, string(stripelib.CheckoutSessionModePayment), *captured.Mode)
	require.Len(t, captured.LineItems, 1)
	item := captured.LineItems[0]
	assert.Equal(t, int64(5), *item.Quantity)
	assert.Equal(t, int64(999), *item.PriceData.UnitAmount)
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, "Race Photos - Bib #2002", *item.PriceData.ProductData.Name)
	assert.Equal(t, "5 high-resolution race photos ($9.99 each)", *item.PriceData.ProductData.Description)

	assert.Equal(t, "2002", captured.Metadata[MetadataBibNumber])
	assert.Equal(t, "5", captured.Metadata[MetadataPhotoCount])
	assert.Equal(t, "999", captured.Metadata[MetadataPricePerPhoto])
	assert.Equal(t, paymentID.String(), captured.Metadata[MetadataPaymentID])
	assert.Equal(t, captured.Metadata, captured.PaymentIntentData.Metadata)

	var decoded []uuid.UUID
	require.NoError(t, json.Unmarshal([]byte(captured.Metadata[MetadataSelectedPhotoIDs]), &decoded))
	assert.Equal(t, ids, decoded)
	assert.Nil(t, captured.CustomerEmail)
}

func TestCreateCheckoutSessionUpstreamError(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret)
	p.createCheckoutSession = func(*stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error) {
		return nil, errors.New("card_declined")
	}

	_, err := p.CreateCheckoutSession(context.Background(), services.CheckoutSessionRequest{
		PaymentID: uuid.New(), BibNumber: "1001", PhotoIDs: []uuid.UUID{uuid.New()}, PricePerPhoto: 1499, Currency: "usd",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUpstream)
}

func TestProductDescriptionSingular(t *testing.T) {
	assert.Equal(t, "1 high-resolution race photo ($14.99 each)", ProductDescription(1, 1499))
}

func TestParseWebhookCheckoutCompleted(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret)
	body, header := signed(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_intent": "pi_123",
			"payment_status": "paid",
			"metadata": {"bib_number": "1001", "selected_photo_ids": "[\"a\"]"}
		}}
	}`)

	evt, err := p.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, "checkout.session.completed", evt.Type)
	assert.Equal(t, "cs_test_1", evt.SessionID)
	assert.Equal(t, "pi_123", evt.PaymentIntentID)
	assert.Equal(t, "1001", evt.Metadata["bib_number"])
}

func TestParseWebhookExpandedPaymentIntent(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret)
	body, header := signed(t, `{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_2", "payment_intent": {"id": "pi_456", "object": "payment_intent"}}}
	}`)

	evt, err := p.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "pi_456", evt.PaymentIntentID)
}

func TestParseWebhookPaymentIntent(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret)
	body, header := signed(t, `{
		"id": "evt_3",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_789", "object": "payment_intent", "metadata": {"payment_id": "x"}}}
	}`)

	evt, err := p.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "pi_789", evt.PaymentIntentID)
	assert.Empty(t, evt.SessionID)
	assert.Equal(t, "x", evt.Metadata["payment_id"])
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testSecret)
	body, _ := signed(t, `{"id": "evt_4", "type": "checkout.session.completed", "data": {"object": {}}}`)

	_, err := p.ParseWebhook(body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, services.ErrInvalidSignature)

	_, err = p.ParseWebhook(body, "")
	assert.ErrorIs(t, err, services.ErrInvalidSignature)
}

func TestParseWebhookWithoutSecret(t *testing.T) {
	p := NewStripeProvider("sk_test_123", "")
	_, err := p.ParseWebhook([]byte(`{}`), "t=1,v1=x")
	assert.ErrorIs(t, err, services.ErrWebhookNotConfigured)
}
