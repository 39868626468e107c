package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/email"
	"race-photos-backend/internal/models"
)

type PhotoStore interface {
	// ListPhotosByBib returns every photo for the bib, inactive included,
	// ordered by photo_order.
	ListPhotosByBib(ctx context.Context, bib models.BibNumber) ([]models.Photo, error)
	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	// GetActivePhotos returns the active photos of bib among ids.
	GetActivePhotos(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) ([]models.Photo, error)
	CreatePhoto(ctx context.Context, photo *models.Photo) error
	UpdatePhotoURLs(ctx context.Context, id uuid.UUID, previewURL, highresURL string, watermarkURL *string) (time.Time, error)
	DeletePhoto(ctx context.Context, id uuid.UUID) error
	NextPhotoOrder(ctx context.Context, bib models.BibNumber) (int, error)
}

type SelectionStore interface {
	UpsertSelection(ctx context.Context, bib models.BibNumber, photoID uuid.UUID, selected bool) error
	// ReplaceSelections clears every selection of bib and marks ids selected,
	// atomically.
	ReplaceSelections(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) error
	ListSelections(ctx context.Context, bib models.BibNumber) ([]models.PhotoSelection, error)
}

type AccessStore interface {
	EnsureAccess(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error
	ListAccess(ctx context.Context, bib models.BibNumber) ([]models.PhotoAccess, error)
	MarkSurveyCompleted(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error
	// ListUnlocked returns the unlocked, active photos of bib ordered by
	// photo_order.
	ListUnlocked(ctx context.Context, bib models.BibNumber) ([]models.UnlockedPhoto, error)
	RecordDownloads(ctx context.Context, accessIDs []uuid.UUID) error
}

type SurveyStore interface {
	GetSurvey(ctx context.Context, bib models.BibNumber) (*models.SurveyResponse, error)
	// CreateSurvey inserts the response unless one already exists for the bib.
	CreateSurvey(ctx context.Context, survey *models.SurveyResponse) (bool, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	// CompletePayment moves a pending payment to completed and unlocks its
	// photos in one transaction. The bool is false when the payment was not
	// pending, in which case nothing changes.
	CompletePayment(ctx context.Context, lookup models.PaymentLookup, completion models.PaymentCompletion) (*models.Payment, bool, error)
	// TransitionPayment moves a pending payment to status. The bool is false
	// when the payment was not pending.
	TransitionPayment(ctx context.Context, lookup models.PaymentLookup, status models.PaymentStatus) (bool, error)
	ListOrderItems(ctx context.Context, paymentID uuid.UUID) ([]models.OrderItem, error)
	IncrementEmailAttempts(ctx context.Context, paymentID uuid.UUID, attempts int) error
	// ClaimEmailSend sets email_sent only if it was unset, or always when force
	// is true. The bool reports whether this caller holds the claim.
	ClaimEmailSend(ctx context.Context, paymentID uuid.UUID, force bool) (bool, error)
	// ReleaseEmailClaim undoes a claim whose send never completed. A payment
	// that was emailed before keeps email_sent.
	ReleaseEmailClaim(ctx context.Context, paymentID uuid.UUID) error
	MarkEmailSent(ctx context.Context, paymentID uuid.UUID) error
}

type AdminStore interface {
	ListBibSummaries(ctx context.Context) ([]models.BibSummary, error)
	// DeleteBib removes every row for the bib and returns the deleted photos.
	DeleteBib(ctx context.Context, bib models.BibNumber) ([]models.Photo, error)
}

// Store is everything the services persist.
type Store interface {
	PhotoStore
	SelectionStore
	AccessStore
	SurveyStore
	PaymentStore
	AdminStore
}

// ObjectStorage holds photo files.
type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, data []byte) error
	CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, paths []string) error
	// ObjectPath extracts the object path from a URL issued for this bucket.
	ObjectPath(url string) (string, bool)
}

type CheckoutSessionRequest struct {
	PaymentID     uuid.UUID
	BibNumber     models.BibNumber
	PhotoIDs      []uuid.UUID
	PricePerPhoto int64
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// WebhookEvent is a verified payment provider event reduced to the fields
// reconciliation needs.
type WebhookEvent struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	Metadata        map[string]string
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
