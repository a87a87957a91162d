package dify

import "fmt"

// AuthError signals a rejected credential or workflow target (401/403).
// It invalidates the whole run, not just the current row.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.StatusCode, e.Message)
}

// ValidationError signals that the remote side rejected the row's
// parameters (400/422). Row-local, never retried.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input validation failed (%d): %s", e.StatusCode, e.Message)
}

// RateLimitError signals a 429 response.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limited (429), retry after: %s", e.RetryAfter)
	}
	return "rate limited (429)"
}

// APIError covers every other non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Body)
}
