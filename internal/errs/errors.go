package errs

import "fmt"

// Error is the structured error type returned by every core package. It
// carries enough context to populate response.error{code,message,hint}
// (spec.md 6, 7) without the caller needing to string-match messages.
type Error struct {
	// Kind is the stable error-kind tag (spec.md 7).
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Details contains additional structured context, e.g. the field
	// name for a KindValidationError.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Hint is an optional actionable suggestion for the caller.
	Hint string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by kind, enabling
// errors.Is(err, &Error{Kind: KindNotFound}) style comparisons.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail adds a key-value detail to the error. Returns the error for
// method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithHint sets an actionable suggestion for the caller. Returns the
// error for method chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error from an existing error, preserving it as Cause.
// Returns nil if err is nil.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Cause: err}
}

// Validation creates a KindValidationError.
func Validation(message string) *Error {
	return New(KindValidationError, message)
}

// NotFound creates a KindNotFound error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// IO creates a KindIoError, wrapping cause.
func IO(message string, cause error) *Error {
	e := New(KindIoError, message)
	e.Cause = cause
	return e
}

// Of reports whether err is a *Error of the given kind.
func Of(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err's kind is one the caller may retry
// without changing its request (presently only KindLockBusy).
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return retryableKinds[e.Kind]
	}
	return false
}
