// File: internal/vtapi/errors.go
package vtapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals an HTTP 404 for the queried indicator. Callers map
	// this to a found:false result rather than surfacing it as a failure.
	ErrNotFound = errors.New("indicator not found")

	// ErrRateLimited covers both the local fail-fast path and an upstream 429.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey signals an HTTP 401.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// StatusError carries any other non-2xx upstream status.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream API error: status %d on %s", e.StatusCode, e.Endpoint)
}
