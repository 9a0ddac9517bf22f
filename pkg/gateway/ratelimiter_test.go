package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLimiter_Acquire(t *testing.T) {
	t.Run("should allow requests under limit", func(t *testing.T) {
		limiter := NewSessionLimiter(10, 5)

		for i := 0; i < 5; i++ {
			ok, code, reason := limiter.Acquire()
			assert.True(t, ok)
			assert.Zero(t, code)
			assert.Empty(t, reason)
		}
	})

	t.Run("should reject when concurrent limit exceeded", func(t *testing.T) {
		limiter := NewSessionLimiter(100, 3)

		for i := 0; i < 3; i++ {
			ok, _, _ := limiter.Acquire()
			assert.True(t, ok)
		}

		ok, code, reason := limiter.Acquire()
		assert.False(t, ok)
		assert.Equal(t, TooManyConcurrent, code)
		assert.Equal(t, "too many concurrent requests", reason)

		limiter.Release()
		ok, _, _ = limiter.Acquire()
		assert.True(t, ok, "a released slot is reusable")
	})

	t.Run("should reject when rate limit exceeded", func(t *testing.T) {
		limiter := NewSessionLimiter(5, 10)

		for i := 0; i < 5; i++ {
			ok, _, _ := limiter.Acquire()
			assert.True(t, ok)
			limiter.Release()
		}

		ok, code, reason := limiter.Acquire()
		assert.False(t, ok)
		assert.Equal(t, RateLimitExceeded, code)
		assert.Equal(t, "rate limit exceeded", reason)
	})

	t.Run("should allow requests after window expires", func(t *testing.T) {
		now := time.Now()
		limiter := NewSessionLimiter(2, 10)
		limiter.now = func() time.Time { return now }

		for i := 0; i < 2; i++ {
			limiter.Acquire()
			limiter.Release()
		}
		ok, _, _ := limiter.Acquire()
		assert.False(t, ok)

		now = now.Add(61 * time.Second)
		ok, _, _ = limiter.Acquire()
		assert.True(t, ok)
	})

	t.Run("zero limits disable the checks", func(t *testing.T) {
		limiter := NewSessionLimiter(0, 0)
		for i := 0; i < 1000; i++ {
			ok, _, _ := limiter.Acquire()
			assert.True(t, ok)
		}
	})

	t.Run("nil limiter admits everything", func(t *testing.T) {
		var limiter *SessionLimiter
		ok, _, _ := limiter.Acquire()
		assert.True(t, ok)
		limiter.Release()
	})
}

func TestSessionLimiter_Stats(t *testing.T) {
	limiter := NewSessionLimiter(100, 10)

	limiter.Acquire()
	limiter.Acquire()
	limiter.Release()

	recent, inFlight := limiter.Stats()
	assert.Equal(t, 2, recent)
	assert.Equal(t, 1, inFlight)

	limiter.Release()
	limiter.Release()
	_, inFlight = limiter.Stats()
	assert.Equal(t, 0, inFlight, "release never goes negative")
}
