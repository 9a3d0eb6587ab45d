package esimdb

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
)

// StatusError is a non-2xx upstream response
type StatusError struct {
	Status int
	Body   string
}

// Error interface
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("esimdb status %d", e.Status)
	}
	return fmt.Sprintf("esimdb status %d: %s", e.Status, e.Body)
}

// HTTPStatus returns the response status code
func (e *StatusError) HTTPStatus() int { return e.Status }

// statusError wraps a StatusError with the code that drives retry decisions.
// 408, 429 and 5xx are transient; every other status is terminal
func statusError(status int, body string) error {
	se := &StatusError{Status: status, Body: strings.TrimSpace(body)}
	switch {
	case status == http.StatusTooManyRequests:
		return perr.Wrap(se, perr.ErrorCodeTooManyRequests, "esimdb rate limited")
	case status == http.StatusRequestTimeout, status >= 500:
		return perr.Wrap(se, perr.ErrorCodeUnavailable, "esimdb transient server error")
	case status == http.StatusNotFound:
		return perr.Wrap(se, perr.ErrorCodeNotFound, "esimdb resource not found")
	default:
		return perr.Wrap(se, perr.ErrorCodeInvalidArgument, "esimdb rejected request")
	}
}

// FetchError is the terminal failure of one page request after retries are spent
// or a non-retryable response. Country is empty for discovery requests
type FetchError struct {
	Country  string
	Page     int
	Attempts int
	Err      error
}

// Error interface
func (e *FetchError) Error() string {
	if e.Country == "" {
		return fmt.Sprintf("fetch countries failed after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s page %d failed after %d attempt(s): %v", e.Country, e.Page, e.Attempts, e.Err)
}

// Unwrap interface
func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err carries a FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsRateLimited reports whether err ended on a 429
func IsRateLimited(err error) bool { return perr.IsCode(err, perr.ErrorCodeTooManyRequests) }
