package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client. Every error returned by Dispatch is
// an *APIError wrapping one of these.
var (
	// ErrCircuitBreakerSuppressed is returned without any I/O when the
	// endpoint answered 403 or 404 within the failed-endpoint TTL.
	ErrCircuitBreakerSuppressed = errors.New("endpoint recently failed, request suppressed")

	// ErrRateLimited is returned when every attempt received 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransport wraps the last connection or timeout error after the
	// retry budget is spent.
	ErrTransport = errors.New("transport error")

	// ErrHTTPStatus marks a non-2xx response turned into an error by CheckStatus.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the caller's context ends while
	// the request is waiting.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrInvalidRequest is returned when the request cannot be built.
	ErrInvalidRequest = errors.New("invalid request")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassCircuitBreaker represents requests suppressed by the failed-endpoint record.
	ErrorClassCircuitBreaker ErrorClass = "circuit_breaker"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassCancelled represents callers that gave up waiting.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassRequest represents requests that could not be built.
	ErrorClassRequest ErrorClass = "request"
)

// APIError represents a failed dispatch with additional context.
type APIError struct {
	Class      ErrorClass
	Method     string
	Endpoint   string
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %s error", e.Method, e.Endpoint, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// CheckStatus returns nil for a 2xx response and an *APIError wrapping
// ErrHTTPStatus otherwise. Dispatch never does this itself: non-429
// statuses are handed back untouched for the caller to interpret.
func CheckStatus(resp *Response) error {
	if resp == nil {
		return &APIError{Class: ErrorClassRequest, Err: fmt.Errorf("%w: nil response", ErrInvalidRequest)}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &APIError{
		Class:      classifyStatus(resp.StatusCode),
		Method:     resp.Method,
		Endpoint:   resp.Endpoint,
		StatusCode: resp.StatusCode,
		Attempts:   resp.Attempts,
		Err:        fmt.Errorf("%w: %s", ErrHTTPStatus, statusText(resp.StatusCode)),
	}
}

// classifyStatus categorizes a status code for observability and handling.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d %s", status, text)
	}
	return fmt.Sprintf("%d", status)
}

// IsClass reports whether err is an *APIError of the given class.
func IsClass(err error, class ErrorClass) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == class
}
