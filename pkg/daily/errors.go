package daily

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("daily: API key required")

	// ErrNoRoomURL is returned when a room URL is required but empty.
	ErrNoRoomURL = errors.New("daily: room URL required")
)

// APIError represents an error response from the Daily REST API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Info is the error description from the API.
	Info string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("daily: API error %d: %s", e.StatusCode, e.Info)
}

// IsRateLimited returns true for HTTP 429 responses.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true for HTTP 5xx responses.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}
