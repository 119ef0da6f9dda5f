package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiterConfig sizes the token bucket guarding an external provider.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate.
	RequestsPerSecond float64
	// Burst is the bucket size.
	Burst int
	// MaxBacklog bounds how many requests may queue for a token before the
	// limiter fails fast.
	MaxBacklog int
}

// DefaultRateLimiterConfig returns a conservative default bucket.
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		MaxBacklog:        64,
	}
}

// RateLimiter is a token bucket with a bounded waiting backlog. Excess
// requests queue until the backlog is full, then fail fast so callers can
// surface rate_limited instead of piling up.
type RateLimiter struct {
	limiter *rate.Limiter
	backlog chan struct{}
}

// NewRateLimiter builds a limiter from configuration.
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		backlog: make(chan struct{}, config.MaxBacklog),
	}
}

// Acquire blocks for a token, honouring ctx. It returns false immediately
// when the backlog is already full.
func (r *RateLimiter) Acquire(ctx context.Context) (bool, error) {
	select {
	case r.backlog <- struct{}{}:
	default:
		return false, nil
	}
	defer func() { <-r.backlog }()

	if err := r.limiter.Wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}
