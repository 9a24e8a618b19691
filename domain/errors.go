package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalTransition    = errors.New("illegal transition of checkout state")
	ErrTransitionInProgress = errors.New("a checkout request is already in progress")
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrSessionClosed        = errors.New("checkout session is closed")
	ErrSessionFrozen        = errors.New("checkout session is frozen")
)

// ValidationError is a local precondition violation, detected before any network call.
type ValidationError struct {
	Code    string
	Message string
}

func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TransportError is a network or timeout failure talking to a collaborator.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FatalInconsistency means a collaborator reported success but left out a required field.
type FatalInconsistency struct {
	Op      string
	Missing string
}

func (e *FatalInconsistency) Error() string {
	return fmt.Sprintf("%s: collaborator reported success without %s", e.Op, e.Missing)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

func IsFatal(err error) bool {
	var f *FatalInconsistency
	return errors.As(err, &f)
}

// PaymentDeclined is a well-formed failure answer from submit or retry. It drives
// the retry/fallback policy and is never returned as an error.
type PaymentDeclined struct {
	Message         string
	CanRetry        bool
	RedirectToStore bool
}

type FailureKind string

const (
	FailurePaymentDeclined  FailureKind = "payment_declined"
	FailureTransport        FailureKind = "transport"
	FailureSlotFetch        FailureKind = "slot_fetch"
	FailureSlotConfirmation FailureKind = "slot_confirmation"
)

const GenericFailureMessage = "Payment could not be completed. Please try again or choose store pickup."

// Failure is the user-visible description of the last non-fatal failure.
type Failure struct {
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
	Attempts int         `json:"attempts"`
}

// NewFailure falls back to GenericFailureMessage when the collaborator gave no message.
func NewFailure(kind FailureKind, message string, attempts int) *Failure {
	if message == "" {
		message = GenericFailureMessage
	}
	return &Failure{Kind: kind, Message: message, Attempts: attempts}
}
