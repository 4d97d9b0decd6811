package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a backend failure for the orchestrator's retry policy.
type ErrorKind string

const (
	KindRateLimited      ErrorKind = "rate_limited"
	KindInvalidRequest   ErrorKind = "invalid_request"
	KindTimeout          ErrorKind = "timeout"
	KindTransportFailure ErrorKind = "transport_failure"
	KindUnauthorized     ErrorKind = "unauthorized"
)

// BackendError wraps a vendor or transport failure with its classification.
type BackendError struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Err      error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s backend: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator should retry the call. Rate
// limits and transport-level failures (which include vendor 5xx) are
// transient; everything else terminates the run.
func Retryable(err error) bool {
	var be *BackendError
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == KindRateLimited || be.Kind == KindTransportFailure
}

// classifyStatus maps an HTTP status code from a vendor API to an ErrorKind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 401 || status == 403:
		return KindUnauthorized
	case status == 408:
		return KindTimeout
	case status >= 400 && status < 500:
		return KindInvalidRequest
	default:
		return KindTransportFailure
	}
}

// wrapTransport classifies non-HTTP failures: deadline expiry surfaces as a
// timeout, anything else as a transport failure.
func wrapTransport(provider string, err error) *BackendError {
	kind := KindTransportFailure
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &BackendError{Kind: kind, Provider: provider, Err: err}
}
