package app

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuditUnavailable marks a fail-closed abort: strict auditing is
// enabled and the audit append could not be confirmed before invocation.
var ErrAuditUnavailable = errors.New("audit log unavailable")

// UnavailableError reports that every candidate backend's circuit was
// open before anything was invoked. Fatal to the call; not retried.
type UnavailableError struct {
	Backends []string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: circuit open for %s", strings.Join(e.Backends, ", "))
}

// InvocationError reports that an external backend call raised or timed
// out, with no fallback left to try.
type InvocationError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("backend %s invocation failed: %v", e.Backend, e.Err)
}

// Unwrap exposes the underlying invocation failure.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// FallbackError reports that both the preferred and the fallback attempt
// failed, describing each so the caller can decide whether to retry the
// whole operation later.
type FallbackError struct {
	Preferred    string
	Fallback     string
	PreferredErr error
	FallbackErr  error
}

// Error implements the error interface.
func (e *FallbackError) Error() string {
	return fmt.Sprintf("all backends failed: %s (%v); %s (%v)",
		e.Preferred, e.PreferredErr, e.Fallback, e.FallbackErr)
}

// Unwrap exposes both underlying failures for errors.Is/As.
func (e *FallbackError) Unwrap() []error {
	return []error{e.PreferredErr, e.FallbackErr}
}
