package messaging

import (
	"errors"
	"fmt"
)

// ErrMisconfigured is returned when provider credentials are missing or malformed.
var ErrMisconfigured = errors.New("messaging: provider misconfigured")

// ErrorKind classifies provider failures for logs and metrics.
type ErrorKind string

const (
	ErrKindAuth             ErrorKind = "auth"
	ErrKindInvalidRecipient ErrorKind = "invalid_recipient"
	ErrKindDeclined         ErrorKind = "declined"
	ErrKindRejected         ErrorKind = "rejected"
	ErrKindTransport        ErrorKind = "transport"
)

// Twilio error codes with a dedicated kind.
const (
	twilioCodeAuthenticate     = 20003
	twilioCodeInvalidTo        = 21211
	twilioCodeNotMobile        = 21614
	twilioCodeInvalidChannel   = 63003
	twilioCodeDeliveryDeclined = 63049
)

// ProviderError is a structured delivery failure. Callers treat it as opaque and non-fatal.
type ProviderError struct {
	Kind       ErrorKind
	HTTPStatus int
	Code       int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("messaging: %s: %v", e.Kind, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("messaging: %s: status %d code %d: %s", e.Kind, e.HTTPStatus, e.Code, e.Message)
	default:
		return fmt.Sprintf("messaging: %s: status %d: %s", e.Kind, e.HTTPStatus, e.Message)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the provider error kind of err, or "" when err is not a ProviderError.
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

func classify(status, code int) ErrorKind {
	switch {
	case status == 401 || status == 403 || code == twilioCodeAuthenticate:
		return ErrKindAuth
	case code == twilioCodeDeliveryDeclined:
		return ErrKindDeclined
	case code == twilioCodeInvalidTo || code == twilioCodeNotMobile || code == twilioCodeInvalidChannel:
		return ErrKindInvalidRecipient
	default:
		return ErrKindRejected
	}
}
