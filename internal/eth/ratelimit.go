package eth

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a minimal interface to rate-limit RPC calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// nopLimiter allows unlimited throughput.
type nopLimiter struct{}

func (nopLimiter) Wait(ctx context.Context) error { return ctx.Err() }

// NewLimiter returns a Limiter enforcing req/s using a token bucket with a
// burst of one, so concurrent probes queue instead of thundering. If rate <= 0,
// returns unlimited.
func NewLimiter(rps int) Limiter {
	if rps <= 0 {
		return nopLimiter{}
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
