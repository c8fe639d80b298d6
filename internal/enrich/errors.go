package enrich

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrExhaustedRetries marks an operation that kept failing after the retry budget ran out.
	ErrExhaustedRetries = errors.New("retries exhausted")
	// ErrValidationRejected marks a candidate that was fetched but failed content checks.
	ErrValidationRejected = errors.New("candidate rejected")
)

// FetchError is a network, timeout or HTTP-status failure from a PageFetcher.
type FetchError struct {
	URL        string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewStatusError builds a FetchError for a non-success HTTP status.
// 408, 425, 429 and 5xx are retryable; other statuses are permanent.
func NewStatusError(url string, status int) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: status,
		Retryable:  retryableStatus(status),
	}
}

func retryableStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// ExhaustedRetriesError wraps the last error seen once retries are used up.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last underlying error.
func (e *ExhaustedRetriesError) Unwrap() []error {
	return []error{ErrExhaustedRetries, e.Last}
}

// ValidationError explains why a candidate was rejected.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("candidate %s rejected: %s", e.URL, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationRejected
}
