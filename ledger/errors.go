package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of every request validation failure.
	// Nothing has been mutated when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateIdempotencyKey is returned by a Store when a sale with the
	// same clientRequestId is already stored.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrSaleNotFound is returned by direct sale lookups.
	ErrSaleNotFound = errors.New("sale not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError describes a rejected request. Callers surface it without
// retrying; the ledger never masks it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Mutated is always false: validation runs before any state change.
func (e *ValidationError) Mutated() bool { return false }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing sale.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSaleNotFound)
}
