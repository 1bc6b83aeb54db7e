package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchError is the typed result of a failed fetch. The retryable/permanent
// distinction is decided at the fetch boundary so the pipeline never has to
// guess from error strings.
type FetchError struct {
	URL        string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s failure (status %d): %v", e.URL, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewRetryableFetchError wraps a transient failure (timeout, network reset).
func NewRetryableFetchError(url string, err error) *FetchError {
	return &FetchError{URL: url, Retryable: true, Err: err}
}

// NewPermanentFetchError wraps a failure that retrying cannot fix.
func NewPermanentFetchError(url string, err error) *FetchError {
	return &FetchError{URL: url, Retryable: false, Err: err}
}

// ClassifyFetchError converts a transport error into a FetchError. Timeouts
// and network-level failures are retryable; context cancellation and
// everything else is permanent.
func ClassifyFetchError(url string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.Canceled) {
		return NewPermanentFetchError(url, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRetryableFetchError(url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewRetryableFetchError(url, err)
	}
	return NewPermanentFetchError(url, err)
}

// CheckStatus maps an HTTP status to a FetchError: 5xx is retryable, other
// non-2xx/3xx statuses are permanent (disallowed or missing content).
func CheckStatus(page Page) error {
	switch {
	case page.StatusCode == 0 || page.StatusCode < http.StatusBadRequest:
		return nil
	case page.StatusCode >= http.StatusInternalServerError:
		return &FetchError{
			URL:        page.URL,
			StatusCode: page.StatusCode,
			Retryable:  true,
			Err:        fmt.Errorf("server error %d", page.StatusCode),
		}
	default:
		return &FetchError{
			URL:        page.URL,
			StatusCode: page.StatusCode,
			Retryable:  false,
			Err:        fmt.Errorf("client error %d", page.StatusCode),
		}
	}
}

// IsRetryable reports whether err carries a retryable FetchError.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}
