// Package errors provides the failure taxonomy for the scraper.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure reported by the remote execution boundary.
// The browser adapter maps transport errors into a Kind exactly once; the
// rest of the code base only ever inspects the Kind.
type Kind int

const (
	// Unknown is an unclassified remote failure (script error, bad selector).
	Unknown Kind = iota
	// ContextDestroyed means the JavaScript execution context was torn down mid-call.
	ContextDestroyed
	// FrameDetached means the frame hosting the document went away.
	FrameDetached
	// TargetClosed means the tab itself was closed.
	TargetClosed
	// SessionClosed means the devtools session or connection is gone.
	SessionClosed
	// ContextMissing means there was no execution context to run against.
	ContextMissing
	// Timeout means the remote operation exceeded its deadline.
	Timeout
	// Cancelled means the caller's context was cancelled.
	Cancelled
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case ContextDestroyed:
		return "context_destroyed"
	case FrameDetached:
		return "frame_detached"
	case TargetClosed:
		return "target_closed"
	case SessionClosed:
		return "session_closed"
	case ContextMissing:
		return "context_missing"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTransient reports whether the kind is a transient-context marker, i.e.
// the context was invalidated underneath the call rather than the call
// itself being wrong.
func (k Kind) IsTransient() bool {
	switch k {
	case ContextDestroyed, FrameDetached, TargetClosed, SessionClosed, ContextMissing:
		return true
	default:
		return false
	}
}

// RemoteError is a classified failure from the remote execution boundary.
type RemoteError struct {
	Kind  Kind
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s during %s: %v", e.Kind, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s during %s", e.Kind, e.Op)
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// NewRemoteError creates a RemoteError.
func NewRemoteError(kind Kind, op string, cause error) *RemoteError {
	return &RemoteError{Kind: kind, Op: op, Cause: cause}
}

// ErrorType categorizes domain failures for handling decisions.
type ErrorType int

const (
	// Internal is an uncategorized failure.
	Internal ErrorType = iota
	// Execution means a single evaluation inside the remote context could not complete.
	Execution
	// Navigation means a target could not be brought to the ready state.
	Navigation
	// Session means the remote session could not provide an execution context.
	Session
	// IO represents input/output collaborator failures.
	IO
	// Aborted represents context cancellation.
	Aborted
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Execution:
		return "execution"
	case Navigation:
		return "navigation"
	case Session:
		return "session"
	case IO:
		return "io"
	case Aborted:
		return "cancelled"
	default:
		return "internal"
	}
}

// ScrapeError represents a categorized scrape failure.
type ScrapeError struct {
	Type      ErrorType
	URL       string
	Operation string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *ScrapeError) Error() string {
	where := e.Operation
	if e.URL != "" {
		where = fmt.Sprintf("%s on %s", e.Operation, e.URL)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s failure during %s: %s (caused by: %v)",
			e.Type, where, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failure during %s: %s", e.Type, where, e.Message)
}

// Unwrap returns the underlying error.
func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target of the same type.
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(errType ErrorType, url, operation, message string, cause error) *ScrapeError {
	return &ScrapeError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewExecutionFailure creates an execution failure carrying the last remote cause.
func NewExecutionFailure(url, operation string, cause error) *ScrapeError {
	return NewScrapeError(Execution, url, operation, "remote evaluation failed", cause)
}

// NewNavigationFailure creates a navigation failure.
func NewNavigationFailure(url, message string, cause error) *ScrapeError {
	return NewScrapeError(Navigation, url, "navigate", message, cause)
}

// NewSessionFailure creates a session failure.
func NewSessionFailure(operation string, cause error) *ScrapeError {
	return NewScrapeError(Session, "", operation, "remote session unavailable", cause)
}

// NewIOFailure creates an input/output failure.
func NewIOFailure(path, operation string, cause error) *ScrapeError {
	return NewScrapeError(IO, path, operation, "file access failed", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *ScrapeError {
	return NewScrapeError(Aborted, url, operation, "operation cancelled", context.Canceled)
}

// KindOf returns the remote kind found in the error chain, or Unknown.
func KindOf(err error) Kind {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// IsTransient reports whether the error chain carries a transient-context marker.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err).IsTransient()
}

// IsCancelled reports whether the error is a cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) && scrapeErr.Type == Aborted {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) {
		return scrapeErr.Type
	}
	return Internal
}
