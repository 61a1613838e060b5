// Package errors provides the error taxonomy shared by every mediasession package.
//
// Error is the base error type. It captures the failure Kind together with the
// component and operation that produced it, plus an optional status code and
// details. It implements the error and Unwrap interfaces for use with the
// standard errors package.
//
// Usage:
//
//	err := errors.New(errors.KindHandshakeFailed, "credentials", "FetchAPIKey", cause)
//	err = err.WithStatusCode(500).WithDetails(map[string]any{"endpoint": "/api/ai"})
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure. Every error surfaced to subscribers carries one.
type Kind string

// Error kinds.
const (
	KindUnknown               Kind = ""
	KindPermissionDenied      Kind = "permission_denied"
	KindDeviceUnavailable     Kind = "device_unavailable"
	KindCredentialMissing     Kind = "credential_missing"
	KindHandshakeFailed       Kind = "handshake_failed"
	KindTransportError        Kind = "transport_error"
	KindProviderError         Kind = "provider_error"
	KindConfigurationConflict Kind = "configuration_conflict"
)

// String returns the kind name, or "unknown" for the zero value.
func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// Fatal reports whether an error of this kind during an active session
// requires full teardown.
func (k Kind) Fatal() bool {
	return k == KindTransportError || k == KindProviderError
}

// Error is a structured error that records where and why a failure occurred.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Component identifies the package that produced the error (e.g. "session", "gemini").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP or provider status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates an Error with the given kind, component, operation, and cause.
func New(kind Kind, component, operation string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Newf creates an Error whose cause is a formatted message.
func Newf(kind Kind, component, operation, format string, args ...any) *Error {
	return New(kind, component, operation, fmt.Errorf(format, args...))
}

// Error returns a human-readable representation of the error.
func (e *Error) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.Kind != KindUnknown {
		base += " <" + string(e.Kind) + ">"
	}

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Message returns the cause text, falling back to the operation name.
// It is what subscribers see in an Error event.
func (e *Error) Message() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Operation
}

// WithStatusCode sets the status code and returns the error for chaining.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrap returns err unchanged if it already carries a Kind, otherwise wraps it
// in a new Error of the given kind.
func Wrap(err error, kind Kind, component, operation string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return New(kind, component, operation, err)
}
