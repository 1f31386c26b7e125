package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for retry and
// recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary delivery or query failure
	// that may succeed on retry. Examples: network timeouts, 5xx responses.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassClient indicates the remote side rejected the call as
	// malformed or unauthorized (4xx). Retrying cannot succeed.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassFatal indicates a configuration-level failure such as an
	// uninitialized client or a rejected query. Aborts the whole run.
	ErrorClassFatal ErrorClass = "fatal"
)

// SyncError is a classified error with call context.
type SyncError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// StatusCode is the HTTP status of the failing call, when applicable.
	StatusCode int

	// Entity is the entity identifier involved, if applicable.
	Entity string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Entity != "" {
		msg += fmt.Sprintf(" (entity=%s)", e.Entity)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *SyncError {
	return &SyncError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewClientError creates a new client error.
func NewClientError(message string, err error) *SyncError {
	return &SyncError{Class: ErrorClassClient, Message: message, Err: err}
}

// NewFatalError creates a new fatal error.
func NewFatalError(message string, err error) *SyncError {
	return &SyncError{Class: ErrorClassFatal, Message: message, Err: err}
}

// WithStatus adds the HTTP status code of the failing call.
func (e *SyncError) WithStatus(code int) *SyncError {
	e.StatusCode = code
	return e
}

// WithEntity adds the entity identifier involved in the failure.
func (e *SyncError) WithEntity(id string) *SyncError {
	e.Entity = id
	return e
}

// IsTransient returns true if the error is classified as transient.
// Unclassified errors are treated as transient so that plain network
// failures from the HTTP layer get the retry budget.
func IsTransient(err error) bool {
	var e *SyncError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return err != nil
}

// IsClient returns true if the error is classified as a client error.
func IsClient(err error) bool {
	var e *SyncError
	if errors.As(err, &e) {
		return e.Class == ErrorClassClient
	}
	return false
}

// IsFatal returns true if the error is classified as fatal.
func IsFatal(err error) bool {
	var e *SyncError
	if errors.As(err, &e) {
		return e.Class == ErrorClassFatal
	}
	return false
}
