package common

import (
	"errors"
	"fmt"
)

var (
	// Local precondition failures. No network call was made.
	ErrValidation = errors.New("validation error")

	// Credential exchange errors.
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrInvalidOrExpiredCode   = errors.New("invalid or expired code")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrEmailNotVerified       = errors.New("email not verified")

	// Session errors.
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSessionActive = errors.New("session is active")

	// Contract and transport errors.
	ErrMalformedResponse = errors.New("malformed server response")
	ErrNetwork           = errors.New("network error")
	ErrServer            = errors.New("server error")

	// Flow control errors.
	ErrFlowBusy      = errors.New("another operation is in progress")
	ErrStaleResponse = errors.New("response discarded: flow has moved on")

	// Resource and policy errors.
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrCapsuleLocked   = errors.New("capsule is still locked")
	ErrCapsuleUnlocked = errors.New("capsule is already unlocked")
)

// ValidationError describes a failed local precondition. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports ErrValidation as the sentinel for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// APIError is a non-2xx response from the server. Err holds the taxonomy
// sentinel the status was mapped to; Detail is the server-provided message.
type APIError struct {
	Status int
	Detail string
	Err    error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v (status %d): %s", e.Err, e.Status, e.Detail)
	}
	return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text that should be shown to a user for err:
// the validation message, the server detail, or the sentinel text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	for _, s := range []error{
		ErrInvalidCredentials, ErrInvalidOrExpiredCode, ErrEmailAlreadyRegistered,
		ErrEmailNotVerified, ErrUnauthorized, ErrSessionActive, ErrMalformedResponse,
		ErrNetwork, ErrServer, ErrFlowBusy, ErrStaleResponse, ErrNotFound, ErrForbidden,
		ErrCapsuleLocked, ErrCapsuleUnlocked,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
