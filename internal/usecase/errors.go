package usecase

import "errors"

var (
	ErrMalformedPayload = errors.New("malformed notification payload")
	ErrMalformedTrackID = errors.New("malformed track id")
	ErrTokenMismatch    = errors.New("notification token mismatch")
)

type ErrNotFound string

func (e ErrNotFound) Error() string { return string(e) + " not found" }

type ErrConflict string

func (e ErrConflict) Error() string { return string(e) }

type ErrBadRequest string

func (e ErrBadRequest) Error() string { return string(e) }

type ErrUnauthorized string

func (e ErrUnauthorized) Error() string { return string(e) }

// ErrPaymentRejected is returned when the processor refuses to open a payment session.
// Message is safe to show to the buyer.
type ErrPaymentRejected struct {
	Code    string
	Message string
}

func (e *ErrPaymentRejected) Error() string {
	if e.Code == "" {
		return "payment rejected"
	}
	return "payment rejected: code " + e.Code
}
