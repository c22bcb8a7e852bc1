package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_RequestsPerMinute(t *testing.T) {
	limiter := NewRateLimiter(3, 0)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		release, err := limiter.Acquire("10.0.0.1")
		require.NoError(t, err)
		release()
	}

	_, err := limiter.Acquire("10.0.0.1")
	assert.ErrorIs(t, err, ErrRateLimited)

	// other callers have their own window
	release, err := limiter.Acquire("10.0.0.2")
	require.NoError(t, err)
	release()

	now = now.Add(61 * time.Second)
	release, err = limiter.Acquire("10.0.0.1")
	require.NoError(t, err)
	release()
}

func TestRateLimiter_MaxConcurrent(t *testing.T) {
	limiter := NewRateLimiter(0, 2)

	r1, err := limiter.Acquire("k")
	require.NoError(t, err)
	r2, err := limiter.Acquire("k")
	require.NoError(t, err)

	_, err = limiter.Acquire("k")
	assert.ErrorIs(t, err, ErrTooManyConcurrent)

	_, inFlight := limiter.Stats("k")
	assert.Equal(t, 2, inFlight)

	r1()
	r1() // release is idempotent
	_, inFlight = limiter.Stats("k")
	assert.Equal(t, 1, inFlight)

	r3, err := limiter.Acquire("k")
	require.NoError(t, err)
	r2()
	r3()
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		_, err := limiter.Acquire("k")
		require.NoError(t, err)
	}
	requests, inFlight := limiter.Stats("k")
	assert.Equal(t, 100, requests)
	assert.Equal(t, 100, inFlight)
}
