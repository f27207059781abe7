package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so handlers and callers can react without
// string-matching messages.
type Kind string

const (
	// Validation failures caught before persistence
	KindInvalidConfidence    Kind = "invalid_confidence"
	KindMissingJustification Kind = "missing_justification"
	KindDuplicateExternalKey Kind = "duplicate_external_key"
	KindScoreOutOfRange      Kind = "score_out_of_range"
	KindInvalidEnum          Kind = "invalid_enum"
	KindValidation           Kind = "validation"

	// Policy and lookup failures
	KindAccessDenied Kind = "access_denied"
	KindNotFound     Kind = "not_found"

	// Concurrency and transaction failures
	KindLockTimeout         Kind = "lock_timeout"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindPartialWriteAborted Kind = "partial_write_aborted"

	KindInternal Kind = "internal"
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with a kind and a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, or KindInternal if the error
// was never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the operation that produced err is safe to retry
// automatically. Only per-ZIP lock timeouts and serialization conflicts
// qualify; validation and policy errors never do.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindLockTimeout, KindConcurrencyConflict:
		return true
	}
	return false
}
