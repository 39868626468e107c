// Package payments adapts Stripe Checkout to the storefront's payment
// provider interface.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"race-photos-backend/internal/pricing"
	"race-photos-backend/internal/services"
)

// Metadata keys written on checkout sessions and their payment intents.
const (
	MetadataPaymentID        = services.MetadataPaymentID
	MetadataBibNumber        = services.MetadataBibNumber
	MetadataSelectedPhotoIDs = services.MetadataSelectedPhotoIDs
	MetadataPhotoCount       = services.MetadataPhotoCount
	MetadataPricePerPhoto    = services.MetadataPricePerPhoto
)

type StripeProvider struct {
	webhookSecret string

	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	sc := &stripesession.Client{
		B:   stripelib.GetBackend(stripelib.APIBackend),
		Key: strings.TrimSpace(secretKey),
	}
	return &StripeProvider{
		webhookSecret:         strings.TrimSpace(webhookSecret),
		createCheckoutSession: sc.New,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req services.CheckoutSessionRequest) (*services.CheckoutSession, error) {
	count := len(req.PhotoIDs)
	idsJSON, err := json.Marshal(req.PhotoIDs)
	if err != nil {
		return nil, fmt.Errorf("encode photo ids: %w", err)
	}

	metadata := map[string]string{
		MetadataPaymentID:        req.PaymentID.String(),
		MetadataBibNumber:        req.BibNumber.String(),
		MetadataSelectedPhotoIDs: string(idsJSON),
		MetadataPhotoCount:       strconv.Itoa(count),
		MetadataPricePerPhoto:    strconv.FormatInt(req.PricePerPhoto, 10),
	}

	params := &stripelib.CheckoutSessionParams{
		Mode:               stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripelib.StringSlice([]string{"card"}),
		SuccessURL:         stripelib.String(req.SuccessURL),
		CancelURL:          stripelib.String(req.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripelib.String(req.Currency),
					UnitAmount: stripelib.Int64(req.PricePerPhoto),
					ProductData: &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripelib.String(ProductName(req.BibNumber.String())),
						Description: stripelib.String(ProductDescription(count, req.PricePerPhoto)),
					},
				},
				Quantity: stripelib.Int64(int64(count)),
			},
		},
		BillingAddressCollection: stripelib.String(string(stripelib.CheckoutSessionBillingAddressCollectionRequired)),
		AutomaticTax: &stripelib.CheckoutSessionAutomaticTaxParams{
			Enabled: stripelib.Bool(true),
		},
		Metadata: metadata,
		PaymentIntentData: &stripelib.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripelib.String(req.CustomerEmail)
	}
	params.Context = ctx

	sess, err := p.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %w", services.ErrUpstream, err)
	}
	if sess == nil || sess.URL == "" {
		return nil, fmt.Errorf("%w: checkout session has no url", services.ErrUpstream)
	}
	return &services.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and reduces the event to
// the ids and metadata reconciliation needs.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*services.WebhookEvent, error) {
	if p.webhookSecret == "" {
		return nil, services.ErrWebhookNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: missing signature", services.ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrInvalidSignature, err)
	}

	out := &services.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var sess checkoutSessionObject
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		out.SessionID = sess.ID
		out.PaymentIntentID = string(sess.PaymentIntent)
		out.Metadata = sess.Metadata
	case strings.HasPrefix(out.Type, "payment_intent."):
		var intent paymentIntentObject
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("decode payment_intent: %w", err)
		}
		out.PaymentIntentID = intent.ID
		out.Metadata = intent.Metadata
	}
	return out, nil
}

func ProductName(bib string) string {
	return "Race Photos - Bib #" + bib
}

func ProductDescription(count int, pricePerPhoto int64) string {
	noun := "photo"
	if count != 1 {
		noun = "photos"
	}
	return fmt.Sprintf("%d high-resolution race %s (%s each)", count, noun, pricing.FormatPrice(pricePerPhoto))
}

type checkoutSessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent expandableID      `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

type paymentIntentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// expandableID decodes a Stripe reference that is either an id string or an
// expanded object carrying an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*e = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}
