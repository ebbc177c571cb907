package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrUnsupportedRoute indicates the task's (engine, scenario) pair cannot be
// resolved to an adapter and strategy. The task fails immediately without
// consuming retry budget.
var ErrUnsupportedRoute = errors.New("unsupported engine/scenario pair")

// FetchKind classifies fetch failures for retry decisions.
type FetchKind string

// Fetch failure kinds.
const (
	FetchTimeout    FetchKind = "timeout"
	FetchConnection FetchKind = "connection"
	FetchHTTPStatus FetchKind = "http_status"
	FetchOther      FetchKind = "other"
)

// FetchError is the error surface shared by every engine adapter. StatusCode
// is only meaningful for FetchHTTPStatus.
type FetchError struct {
	Kind       FetchKind
	StatusCode int
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewTimeoutError wraps a navigation or request timeout.
func NewTimeoutError(url string, err error) *FetchError {
	return &FetchError{Kind: FetchTimeout, URL: url, Err: err}
}

// NewConnectionError wraps a connection-level failure (refused, reset, DNS).
func NewConnectionError(url string, err error) *FetchError {
	return &FetchError{Kind: FetchConnection, URL: url, Err: err}
}

// NewHTTPStatusError records a non-2xx response.
func NewHTTPStatusError(url string, code int) *FetchError {
	return &FetchError{Kind: FetchHTTPStatus, StatusCode: code, URL: url}
}

// retryableStatus holds the standard retryable HTTP statuses.
var retryableStatus = map[int]struct{}{
	429: {},
	500: {},
	502: {},
	503: {},
	504: {},
}

// IsTransient reports whether the error is worth retrying. Timeouts,
// connection failures and a fixed set of HTTP statuses (429, 500, 502, 503,
// 504) are transient; everything else, including context cancellation, fails
// immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case FetchTimeout, FetchConnection:
			return true
		case FetchHTTPStatus:
			_, ok := retryableStatus[fe.StatusCode]
			return ok
		default:
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
