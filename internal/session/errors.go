package session

import (
	"fmt"

	"github.com/stratadb/strata/internal/doc"
)

// EngineError is a structured error raised by the session engine.
// Code distinguishes the failure class; ID is set when the failure is
// attributable to one document.
type EngineError struct {
	Code    ErrorCode
	Message string
	ID      doc.Identity
	Err     error
}

// ErrorCode categorizes engine failures.
type ErrorCode string

const (
	// ErrCodeNilDocument indicates a nil instance was passed to Store or
	// Delete.
	ErrCodeNilDocument ErrorCode = "NIL_DOCUMENT"

	// ErrCodeUnknownType indicates no mapping is registered for the input.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// ErrCodeAssignFailed indicates key assignment failed; nothing was
	// recorded.
	ErrCodeAssignFailed ErrorCode = "ASSIGN_FAILED"

	// ErrCodeSerializeFailed indicates a document could not be serialized
	// for persistence.
	ErrCodeSerializeFailed ErrorCode = "SERIALIZE_FAILED"

	// ErrCodeCommitFailed indicates the store rejected the commit; pending
	// changes are preserved for retry.
	ErrCodeCommitFailed ErrorCode = "COMMIT_FAILED"

	// ErrCodeListenerAbort indicates a before-save listener failed; the
	// commit never started.
	ErrCodeListenerAbort ErrorCode = "LISTENER_ABORT"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if !e.ID.IsZero() {
		return fmt.Sprintf("%s: %s (doc=%s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func newEngineError(code ErrorCode, id doc.Identity, msg string, err error) *EngineError {
	return &EngineError{Code: code, Message: msg, ID: id, Err: err}
}

// AfterCommitError reports a listener failure that happened after the
// commit already succeeded. The documents are durable; callers must be
// able to tell this partial success apart from a pre-commit failure.
type AfterCommitError struct {
	// Listener is the registration index of the failing listener.
	Listener int
	Err      error
}

func (e *AfterCommitError) Error() string {
	return fmt.Sprintf("after-commit listener %d failed (changes are committed): %v", e.Listener, e.Err)
}

func (e *AfterCommitError) Unwrap() error {
	return e.Err
}
