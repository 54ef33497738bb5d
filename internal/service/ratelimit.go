package service

import (
	"sync"
	"time"
)

// AttemptLimiter throttles repeated credential attempts per key (a
// client IP) with a token bucket. Safe for concurrent use; idle buckets
// are swept by a background goroutine.
type AttemptLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*attemptBucket
	rate     float64 // tokens refilled per second
	capacity float64 // burst size
}

type attemptBucket struct {
	tokens float64
	last   time.Time
}

// NewAttemptLimiter creates a limiter allowing burst attempts per key,
// refilling at perMinute attempts per minute.
func NewAttemptLimiter(perMinute, burst float64) *AttemptLimiter {
	l := &AttemptLimiter{
		buckets:  make(map[string]*attemptBucket),
		rate:     perMinute / 60,
		capacity: burst,
	}
	go l.sweep()
	return l
}

// Allow consumes one attempt for the key and reports whether it was
// within the limit.
func (l *AttemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &attemptBucket{tokens: l.capacity, last: time.Now()}
		l.buckets[key] = b
	}

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*l.rate, l.capacity)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// sweep drops buckets untouched for 10 minutes.
func (l *AttemptLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for key, b := range l.buckets {
			if b.last.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
