package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable machine-readable classification of a domain error.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "VALIDATION"
	ErrorKindNotFound      ErrorKind = "NOT_FOUND"
	ErrorKindDuplicateKey  ErrorKind = "DUPLICATE_KEY"
	ErrorKindTerminalState ErrorKind = "TERMINAL_STATE"
	ErrorKindConflict      ErrorKind = "CONFLICT"
	ErrorKindStorage       ErrorKind = "STORAGE"
)

// DomainError carries an error kind alongside a human-readable message.
type DomainError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// NewValidationError reports a malformed or unrecognized input.
func NewValidationError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewDuplicateKeyError reports a uniqueness violation.
func NewDuplicateKeyError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindDuplicateKey, Message: fmt.Sprintf(format, args...)}
}

// NewTerminalStateError reports a mutation attempted on a closed-lifecycle entity.
func NewTerminalStateError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindTerminalState, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports a lock or isolation conflict. Conflicts are safe
// to retry because the ledger re-derives the mutation from post-commit state.
func NewConflictError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewStorageError wraps an underlying persistence failure.
func NewStorageError(cause error, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindStorage, Message: fmt.Sprintf(format, args...), cause: cause}
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf returns the error kind, or ErrorKindStorage for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrorKindStorage
}
