// Package client is an HTTP client that attaches bearer credentials to
// outgoing requests and refreshes them when they expire, running at most one
// refresh at a time no matter how many requests are waiting on it.
package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned to every request that was waiting on a
// credential refresh that failed.
var ErrSessionExpired = errors.New("client: session expired")

// ErrNoSession is returned by ForceRefresh when no credentials are stored.
var ErrNoSession = errors.New("client: no stored credentials")

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, client.ErrUnauthorized) to check.
var (
	ErrBadRequest   = errors.New("client: bad request")
	ErrUnauthorized = errors.New("client: unauthorized")
	ErrForbidden    = errors.New("client: forbidden")
	ErrNotFound     = errors.New("client: not found")
	ErrConflict     = errors.New("client: conflict")
	ErrThrottled    = errors.New("client: throttled")
	ErrServerError  = errors.New("client: server error")
	ErrHTTPStatus   = errors.New("client: unexpected status")
)

// HTTPError is a non-2xx response. Err holds the status sentinel.
type HTTPError struct {
	StatusCode int
	RequestID  string
	Body       []byte
	Err        error
}

func (e *HTTPError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("client: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Body)
	}
	return fmt.Sprintf("client: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// RequestError is what every failed exchange returns. Canceled is true only
// when the caller cancelled the request; timeouts, network failures and
// error statuses leave it false.
type RequestError struct {
	Method   string
	URL      string
	Canceled bool
	Err      error
}

func (e *RequestError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("client: %s %s canceled: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("client: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err came from an explicitly cancelled request.
func IsCanceled(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Canceled
}

// ConfigError reports caller misuse. It is returned before anything is sent.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "client: invalid configuration: " + e.Msg
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}
		return ErrHTTPStatus
	}
}
