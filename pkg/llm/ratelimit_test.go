package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	limiter := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             5,
		MaxBacklog:        5,
	})

	for i := 0; i < 5; i++ {
		ok, err := limiter.Acquire(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRateLimiterFailsFastWhenBacklogFull(t *testing.T) {
	limiter := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 0.001,
		Burst:             1,
		MaxBacklog:        1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume the single burst token.
	ok, err := limiter.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Fill the backlog with one waiter.
	waiting := make(chan struct{})
	go func() {
		close(waiting)
		_, _ = limiter.Acquire(ctx)
	}()
	<-waiting
	time.Sleep(20 * time.Millisecond)

	// The next caller must fail fast instead of queueing.
	ok, err = limiter.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiterHonoursContextCancellation(t *testing.T) {
	limiter := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 0.001,
		Burst:             1,
		MaxBacklog:        2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	ok, err := limiter.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	cancel()
	ok, err = limiter.Acquire(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
}
