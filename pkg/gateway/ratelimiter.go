package gateway

import (
	"sync"
	"time"
)

// Default per-session limits
const (
	DefaultRequestsPerMinute = 600
	DefaultMaxConcurrent     = 32
)

// SessionLimiter bounds how many requests one session may have in flight and
// how many it may start per sliding minute. A zero limit disables that check.
type SessionLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	maxConcurrent     int
	requests          []time.Time
	inFlight          int
	now               func() time.Time
}

// NewSessionLimiter creates a limiter with the given limits.
func NewSessionLimiter(requestsPerMinute, maxConcurrent int) *SessionLimiter {
	return &SessionLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		requests:          make([]time.Time, 0),
		now:               time.Now,
	}
}

// Acquire admits one request and records its start. It returns the JSON-RPC
// error code and reason when the request is refused.
func (l *SessionLimiter) Acquire() (bool, int, string) {
	if l == nil {
		return true, 0, ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxConcurrent > 0 && l.inFlight >= l.maxConcurrent {
		return false, TooManyConcurrent, "too many concurrent requests"
	}

	now := l.now()
	l.prune(now)
	if l.requestsPerMinute > 0 && len(l.requests) >= l.requestsPerMinute {
		return false, RateLimitExceeded, "rate limit exceeded"
	}

	l.requests = append(l.requests, now)
	l.inFlight++
	return true, 0, ""
}

// Release records the end of an admitted request.
func (l *SessionLimiter) Release() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight > 0 {
		l.inFlight--
	}
}

// Stats returns the requests started in the last minute and those in flight.
func (l *SessionLimiter) Stats() (recent, inFlight int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return len(l.requests), l.inFlight
}

func (l *SessionLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	kept := l.requests[:0]
	for _, t := range l.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.requests = kept
}
