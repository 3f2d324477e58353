package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for domain errors. Callers match with errors.Is on the
// wrapped sentinel rather than string comparison.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrPolicyIneligible  = errors.New("not eligible under refund policy")
	ErrInsufficientFunds = errors.New("insufficient refundable funds")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrGateway           = errors.New("payment gateway failure")
)

// DomainError is the closed error type used across the service. Every failure
// a handler can see is one of the sentinel kinds above, so the HTTP mapping
// in the response package is exhaustive.
type DomainError struct {
	Err     error
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to an HTTP status code.
func (e *DomainError) HTTPStatus() int {
	switch e.Err {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation, ErrPolicyIneligible, ErrInsufficientFunds:
		return http.StatusBadRequest
	case ErrConflict, ErrInvalidState:
		return http.StatusConflict
	case ErrGateway:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewValidationError reports invalid or missing input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: message}
}

// NewPolicyIneligibleError reports a refund whose amount computes to zero or
// negative under the cancellation policy.
func NewPolicyIneligibleError(message string) *DomainError {
	return &DomainError{Err: ErrPolicyIneligible, Message: message}
}

// NewInsufficientFundsError reports a refund request that exceeds the
// booking ledger's available funds.
func NewInsufficientFundsError(message string) *DomainError {
	return &DomainError{Err: ErrInsufficientFunds, Message: message}
}

// NewConflictError reports a concurrent-modification or duplicate-operation conflict.
func NewConflictError(message string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: message}
}

// NewInvalidStateError reports an illegal aggregate state transition.
func NewInvalidStateError(from, to string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// NewGatewayError wraps a payment gateway call failure.
func NewGatewayError(message string, cause error) *DomainError {
	return &DomainError{Err: ErrGateway, Message: message, Cause: cause}
}

// AsDomainError unwraps err to a *DomainError if it is one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
