package eth

import (
	"net/http"
	"strings"
	"time"
)

// NewProvider constructs a concrete Provider for the given endpoint and wraps
// it with a rate limiter. Validation is centralized in NewHTTPProvider (after
// trimming whitespace) to keep behavior in one place.
func NewProvider(endpoint string, rateLimit int, retries int, backoff time.Duration) (Provider, error) {
	base, err := NewHTTPProvider(strings.TrimSpace(endpoint), &http.Client{})
	if err != nil {
		return nil, err
	}
	if hp, ok := base.(*httpProvider); ok {
		if retries > 0 {
			hp.maxRetries = retries
		}
		if backoff > 0 {
			hp.backoffBase = backoff
		}
	}
	return WrapWithLimiter(base, NewLimiter(rateLimit)), nil
}
