package multicall

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimiter spaces aggregate calls to one RPC endpoint.
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
}

// NewRateLimiter creates a limiter allowing rps aggregate calls per second for the
// named endpoint.
func NewRateLimiter(name string, rps int) *RateLimiter {
	slog.Debug("rate limiter created",
		"endpoint", name,
		"rps", rps,
	)
	return &RateLimiter{
		// Burst 1 spreads calls evenly; public RPCs throttle bursts even under the average.
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		name:    name,
	}
}

// Wait blocks until the next call is allowed or ctx is done. A nil limiter never blocks.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Warn("rate limiter wait cancelled",
			"endpoint", rl.name,
			"error", err,
		)
		return err
	}
	return nil
}

// Name returns the endpoint name this limiter is associated with.
func (rl *RateLimiter) Name() string {
	return rl.name
}
