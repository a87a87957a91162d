package retry

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/vietddude/difyrun/internal/core/domain"
	"github.com/vietddude/difyrun/internal/infra/dify"
)

// Policy computes exponential backoff delays between retry attempts.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       time.Duration
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	InitialDelay: 1 * time.Second,
	MaxDelay:     60 * time.Second,
	Jitter:       100 * time.Millisecond,
}

// Delay returns min(initial * 2^attempt + jitter, max) for a zero-indexed
// attempt. Jitter is drawn uniformly from [0, Jitter) to avoid synchronized
// retry storms.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.InitialDelay) * math.Pow(2, float64(attempt))
	delay += rand.Float64() * float64(p.Jitter)
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Classify maps a workflow call error to its class. Typed errors from the
// dify client decide first; string rules catch errors from other layers.
// Anything not explicitly fatal or skippable is treated as transient.
func Classify(err error) domain.Class {
	if err == nil {
		return domain.ClassRetryable // Should not happen
	}

	var authErr *dify.AuthError
	if errors.As(err, &authErr) {
		return domain.ClassFatal
	}
	var valErr *dify.ValidationError
	if errors.As(err, &valErr) {
		return domain.ClassSkippable
	}

	// Typed transient errors are retryable regardless of what their body
	// text mentions; the string rules below only apply to untyped errors.
	var apiErr *dify.APIError
	if errors.As(err, &apiErr) {
		return domain.ClassRetryable
	}
	var rlErr *dify.RateLimitError
	if errors.As(err, &rlErr) {
		return domain.ClassRetryable
	}

	sLower := strings.ToLower(err.Error())

	// Fatal (credential or target is invalid for the whole run)
	if strings.Contains(sLower, "unauthorized") ||
		strings.Contains(sLower, "invalid api key") ||
		strings.Contains(sLower, "access token") ||
		strings.Contains(sLower, "forbidden") {
		return domain.ClassFatal
	}

	// Skippable (this row's parameters are rejected, other rows unaffected)
	if strings.Contains(sLower, "invalid param") ||
		strings.Contains(sLower, "validation") ||
		strings.Contains(sLower, "bad request") {
		return domain.ClassSkippable
	}

	// Default to Retryable (rate limit, timeout, 5xx, network)
	return domain.ClassRetryable
}
