package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment is one checkout attempt. Status only moves away from pending.
type Payment struct {
	ID                    uuid.UUID     `json:"id"`
	BibNumber             BibNumber     `json:"bib_number"`
	SelectedPhotoIDs      []uuid.UUID   `json:"selected_photo_ids"`
	StripeSessionID       string        `json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string        `json:"stripe_payment_intent_id,omitempty"`
	TotalPhotos           int           `json:"total_photos"`
	PricePerPhoto         int64         `json:"price_per_photo"`
	TotalAmount           int64         `json:"total_amount"`
	Currency              string        `json:"currency"`
	Status                PaymentStatus `json:"status"`
	CreatedAt             time.Time     `json:"created_at"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
	EmailSent             bool          `json:"email_sent"`
	EmailSentAt           *time.Time    `json:"email_sent_at,omitempty"`
	EmailAttempts         int           `json:"email_attempts"`
}

type OrderItem struct {
	ID        uuid.UUID `json:"id"`
	PaymentID uuid.UUID `json:"payment_id"`
	PhotoID   uuid.UUID `json:"photo_id"`
	PricePaid int64     `json:"price_paid"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentCompletion carries what a confirmed payment event knows about the
// order. PhotoIDs come from the checkout session metadata.
type PaymentCompletion struct {
	BibNumber       BibNumber
	PhotoIDs        []uuid.UUID
	PaymentIntentID string
}

// BibSummary aggregates one bib's photos and purchase state.
type BibSummary struct {
	BibNumber     BibNumber  `json:"bib_number"`
	PhotoCount    int        `json:"photo_count"`
	LatestUpload  *time.Time `json:"latest_upload,omitempty"`
	HasSurvey     bool       `json:"has_survey"`
	HasPayment    bool       `json:"has_payment"`
	IsPaid        bool       `json:"is_paid"`
	PaymentAmount int64      `json:"payment_amount"`
}

// PaymentLookup identifies a payment row by any of the keys a payment event
// may carry. Zero-valued keys are ignored.
type PaymentLookup struct {
	PaymentID       uuid.UUID
	SessionID       string
	PaymentIntentID string
}

func (l PaymentLookup) IsZero() bool {
	return l.PaymentID == uuid.Nil && l.SessionID == "" && l.PaymentIntentID == ""
}
