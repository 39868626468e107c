package models

import "errors"

// ErrRecordNotFound is returned by stores when a lookup matches no row.
var ErrRecordNotFound = errors.New("record not found")

// ErrBibMismatch is returned when a payment event names a different bib than
// the stored payment.
var ErrBibMismatch = errors.New("bib number does not match payment")
