package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/pagechain/internal/registry"
)

// RuntimeError is a typed engine error returned from public operations.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeClosed indicates an operation on a closed engine.
	ErrCodeClosed RuntimeErrorCode = "ENGINE_CLOSED"

	// ErrCodeInvalidArgument indicates a malformed request, such as a
	// duplicate source or an out-of-range index.
	ErrCodeInvalidArgument RuntimeErrorCode = "INVALID_ARGUMENT"

	// ErrCodeDiffMismatch indicates a diff function whose operations did not
	// turn the current chain into the requested one.
	ErrCodeDiffMismatch RuntimeErrorCode = "DIFF_MISMATCH"

	// ErrCodeBackfillFailed indicates a source inserted inside the loaded
	// range could not be loaded.
	ErrCodeBackfillFailed RuntimeErrorCode = "BACKFILL_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ErrClosed is returned by every operation after Close.
var ErrClosed = &RuntimeError{Code: ErrCodeClosed, Message: "engine is closed"}

// IsClosedError reports whether err is (or wraps) ErrClosed.
func IsClosedError(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

// IsDiffMismatch reports whether err is a diff mismatch.
func IsDiffMismatch(err error) bool {
	return hasCode(err, ErrCodeDiffMismatch)
}

// IsBackfillError reports whether err is a backfill failure.
func IsBackfillError(err error) bool {
	return hasCode(err, ErrCodeBackfillFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func invalidArgument(format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// IsConsistencyError reports whether v, typically a recovered panic value,
// is a *registry.ConsistencyError.
func IsConsistencyError(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var ce *registry.ConsistencyError
	return errors.As(err, &ce)
}

// LoadPanicError wraps a value recovered from a panicking Source.Load. It is
// routed to the error handler like any other load error.
type LoadPanicError struct {
	Value any
}

// Error implements the error interface.
func (e *LoadPanicError) Error() string {
	return fmt.Sprintf("source panicked: %v", e.Value)
}
