package gateway

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRateLimited is returned when a caller exceeds its request rate
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTooManyConcurrent is returned when a caller has too many requests in flight
	ErrTooManyConcurrent = errors.New("too many concurrent requests")
)

// RateLimiter implements a sliding one-minute window plus a concurrency cap
// per caller key (the remote address for HTTP, the client id for websockets).
type RateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	maxConcurrent     int
	callers           map[string]*callerWindow
	now               func() time.Time
}

type callerWindow struct {
	requests []time.Time
	inFlight int
}

// NewRateLimiter creates a limiter. Non-positive limits disable that check.
func NewRateLimiter(requestsPerMinute, maxConcurrent int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		callers:           make(map[string]*callerWindow),
		now:               time.Now,
	}
}

// Acquire admits one request for key. The returned release must be called
// when the request ends.
func (r *RateLimiter) Acquire(key string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w := r.callers[key]
	if w == nil {
		w = &callerWindow{}
		r.callers[key] = w
	}
	w.prune(now.Add(-time.Minute))

	if r.maxConcurrent > 0 && w.inFlight >= r.maxConcurrent {
		return nil, ErrTooManyConcurrent
	}
	if r.requestsPerMinute > 0 && len(w.requests) >= r.requestsPerMinute {
		return nil, ErrRateLimited
	}

	w.requests = append(w.requests, now)
	w.inFlight++

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if w.inFlight > 0 {
				w.inFlight--
			}
			if w.inFlight == 0 && len(w.requests) == 0 {
				delete(r.callers, key)
			}
		})
	}, nil
}

// Stats returns the requests in the current window and those in flight
func (r *RateLimiter) Stats(key string) (requests, inFlight int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.callers[key]
	if w == nil {
		return 0, 0
	}
	w.prune(r.now().Add(-time.Minute))
	return len(w.requests), w.inFlight
}

func (w *callerWindow) prune(cutoff time.Time) {
	kept := w.requests[:0]
	for _, t := range w.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.requests = kept
}
