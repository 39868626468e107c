package services

import (
	"errors"
	"fmt"
)

// Error categories. Handlers map these onto HTTP status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrUpstream   = errors.New("upstream failure")
	ErrSecurity   = errors.New("security check failed")
)

var (
	ErrNoPhotosSelected  = fmt.Errorf("%w: no photos selected", ErrValidation)
	ErrTooManyPhotos     = fmt.Errorf("%w: too many photos selected", ErrValidation)
	ErrPhotoOwnership    = fmt.Errorf("%w: photos do not belong to this bib number", ErrValidation)
	ErrSurveyRequired    = fmt.Errorf("%w: survey must be completed before payment", ErrValidation)
	ErrMissingFields     = fmt.Errorf("%w: missing required fields", ErrValidation)
	ErrInvalidAnswer     = fmt.Errorf("%w: invalid survey answer", ErrValidation)
	ErrPaymentIncomplete = fmt.Errorf("%w: payment not completed", ErrValidation)
	ErrNoRecipient       = fmt.Errorf("%w: no email address on file", ErrValidation)
	ErrNoFiles           = fmt.Errorf("%w: no files uploaded", ErrValidation)
	ErrNotRefreshable    = fmt.Errorf("%w: photo urls do not reference the storage bucket", ErrValidation)

	ErrAlreadyPaid = fmt.Errorf("%w: photos already purchased", ErrConflict)

	ErrBibNotFound     = fmt.Errorf("%w: no photos found for this bib number", ErrNotFound)
	ErrPhotoNotFound   = fmt.Errorf("%w: photo not found", ErrNotFound)
	ErrPaymentNotFound = fmt.Errorf("%w: payment not found", ErrNotFound)
	ErrNoUnlockedPhoto = fmt.Errorf("%w: no unlocked photos", ErrNotFound)
	ErrSurveyNotFound  = fmt.Errorf("%w: survey not found", ErrNotFound)

	ErrInvalidSignature = fmt.Errorf("%w: invalid webhook signature", ErrSecurity)

	// ErrWebhookNotConfigured means no event can be verified.
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
	ErrNoPhotosFetched      = fmt.Errorf("%w: no photos could be fetched", ErrUpstream)
)
