/*
errors.go - Centralized error types for the event engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Entity families and the engine surface wrap or return these.

ERROR CATEGORIES:
  1. Validation errors - Malformed command input, raised before any append
  2. Lookup errors - Commands addressing a missing or terminal entity
  3. Store errors - Idempotency conflicts, transient write contention
  4. Decode errors - Historical events that cannot be read

NOT AN ERROR:
  A repeated idempotency key is a successful no-op. The Guard reports it
  as Result{Created: false}, never as an error.

USAGE:
  if errors.Is(err, generic.ErrValidation) {
      // 400
  }
  var nf *generic.NotFoundError
  if errors.As(err, &nf) {
      // 404 with nf.Kind / nf.ID
  }

SEE ALSO:
  - guard.go: Uses ErrDuplicateIdempotencyKey / ErrConcurrentModification
  - decode.go: Produces DecodeError
*/
package generic

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks malformed or out-of-range command input.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateIdempotencyKey is returned by stores when an event with
	// the same idempotency key already exists. The Guard turns it into a
	// deduplicated result.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when the store could not take
	// the write lock in time. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEntityNotFound is returned when a command references an id with no
	// genesis event.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityTerminal is returned when a command mutates a canceled,
	// closed or archived entity.
	ErrEntityTerminal = errors.New("entity is terminal")

	// ErrMalformedEvent marks a stored event whose payload cannot be decoded.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrEmptyCommand is returned when a command produced no events.
	ErrEmptyCommand = errors.New("command produced no events")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // e.g. "recurring", "habit"
	ID   EntityID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrEntityNotFound }

// TerminalError names an entity whose lifecycle is closed.
type TerminalError struct {
	Kind string
	ID   EntityID
	At   time.Time
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s %q is terminal since %s", e.Kind, e.ID, e.At.UTC().Format(time.RFC3339))
}

func (e *TerminalError) Unwrap() error { return ErrEntityTerminal }

// DecodeError reports a stored event that could not be decoded.
type DecodeError struct {
	EventID EventID
	Type    EventType
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event %s (%s): %v", e.EventID, e.Type, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrMalformedEvent, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEntityTerminal)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
