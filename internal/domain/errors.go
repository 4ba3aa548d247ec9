package domain

import "errors"

// Error kinds shared across the fetch/analysis pipeline. Expected
// conditions (cache miss, expired entry) are normal return values and
// never use these; only genuine failures do.
var (
	// ErrNotFound means the provider does not know the symbol. Never retried.
	ErrNotFound = errors.New("symbol not found")

	// ErrRateLimited means the local window or the provider's own quota is
	// exhausted. Retryable after backoff; batch operations skip the symbol.
	ErrRateLimited = errors.New("rate limited")

	// ErrInsufficientData means a series has fewer bars than an indicator's
	// warm-up requires. Surfaced as a partial result, not a hard failure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUpstream covers malformed provider responses and exhausted retries
	// on transient transport failures.
	ErrUpstream = errors.New("upstream error")

	// ErrTimeout means rate-limit admission or the provider call exceeded
	// its deadline. Retryable.
	ErrTimeout = errors.New("timeout")
)

// ErrorKind names the matched kind for per-symbol failure annotations.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "internal"
	}
}
