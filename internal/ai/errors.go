// ABOUTME: Typed error taxonomy for AI provider failures
// ABOUTME: Classifies errors so callers can decide between retry and fallback

package ai

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes provider errors.
type ErrorCode string

const (
	// ErrAuth is an authentication or authorization rejection; never retried.
	ErrAuth ErrorCode = "auth_error"
	// ErrRateLimited is a rate-limit response; retried with backoff.
	ErrRateLimited ErrorCode = "rate_limited"
	// ErrRateLimitedExhausted is a rate limit that survived the full retry budget.
	ErrRateLimitedExhausted ErrorCode = "rate_limited_exhausted"
	// ErrTransport is a network or HTTP-level failure; never retried.
	ErrTransport ErrorCode = "transport_error"
	// ErrMalformedResponse is a response the adapter could not interpret.
	ErrMalformedResponse ErrorCode = "malformed_response"
)

// Error carries the classification alongside the underlying cause.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int // HTTP status, when one was received
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// newError builds an Error with the given code.
func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// wrapError wraps an underlying error with a classification. Errors that
// already carry a code keep it.
func wrapError(err error, code ErrorCode, message string) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Code: code, Message: message, wrapped: err}
}

func classify(code ErrorCode) func(error) bool {
	return func(err error) bool {
		var ae *Error
		if errors.As(err, &ae) {
			return ae.Code == code
		}
		return false
	}
}

// Predicates for common handling patterns.
var (
	IsAuthError          = classify(ErrAuth)
	IsRateLimited        = classify(ErrRateLimited)
	IsRateLimitExhausted = classify(ErrRateLimitedExhausted)
	IsTransportError     = classify(ErrTransport)
	IsMalformedResponse  = classify(ErrMalformedResponse)
)

// classifyStatus maps an HTTP status code to an error classification.
func classifyStatus(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 429:
		return ErrRateLimited
	default:
		return ErrTransport
	}
}
