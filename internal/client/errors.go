package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when the server reply cannot be decoded
var ErrMalformedResponse = errors.New("malformed server response")

// NetworkError is a failure worth retrying: transport errors, timeouts and
// transient HTTP statuses.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is a terminal HTTP failure
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

// retryableStatus lists the statuses that indicate a transient server condition
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsRetryable reports whether err should be retried with backoff
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// classifyTransport wraps an http.Client error. A cancelled caller context is
// never retried.
func classifyTransport(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &NetworkError{Op: op, Err: err}
}
