// Package ratelimit implements the outbound, per-provider request throttle
// from spec.md §4.2: a minimum delay between calls taken from each adapter's
// configured delay, refined by quota headers the upstream API itself reports.
// This is distinct from the teacher's inbound HTTP middleware
// (wabus/internal/middleware/ratelimit.go), which throttles clients calling
// *this* service; the shape (mutex-guarded state, Allow-style gate) is
// adapted from there, but it governs calls this service makes outward.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter throttles outbound calls to a single upstream provider.
type Limiter struct {
	mu sync.Mutex

	minDelay time.Duration
	lastCall time.Time

	quotaRemaining *int
	quotaResetAt   *time.Time
}

// NewLimiter creates a Limiter enforcing at least minDelay between calls.
func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{minDelay: minDelay}
}

// BeforeCall blocks (via the returned wait duration, which the caller sleeps
// on) until it is safe to make the next call: both the configured minimum
// delay and any upstream-reported quota window must have elapsed.
func (l *Limiter) BeforeCall() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var wait time.Duration

	if !l.lastCall.IsZero() {
		elapsed := now.Sub(l.lastCall)
		if elapsed < l.minDelay {
			wait = l.minDelay - elapsed
		}
	}

	if l.quotaRemaining != nil && *l.quotaRemaining <= 0 && l.quotaResetAt != nil {
		if untilReset := l.quotaResetAt.Sub(now); untilReset > wait {
			wait = untilReset
		}
	}

	l.lastCall = now.Add(wait)
	return wait
}

// CanMakeRequest reports whether a call could proceed right now without
// waiting, for callers that want to skip a request entirely (e.g. serve
// from cache) rather than block.
func (l *Limiter) CanMakeRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if !l.lastCall.IsZero() && now.Sub(l.lastCall) < l.minDelay {
		return false
	}
	if l.quotaRemaining != nil && *l.quotaRemaining <= 0 && l.quotaResetAt != nil && now.Before(*l.quotaResetAt) {
		return false
	}
	return true
}

// UpdateFromHeaders folds an upstream's reported quota (e.g.
// X-RateLimit-Remaining / X-RateLimit-Reset) into future BeforeCall/
// CanMakeRequest decisions. remaining < 0 or resetAt zero mean "unknown,
// don't change the current estimate".
func (l *Limiter) UpdateFromHeaders(remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining >= 0 {
		r := remaining
		l.quotaRemaining = &r
	}
	if !resetAt.IsZero() {
		t := resetAt
		l.quotaResetAt = &t
	}
}

// Reset clears all learned quota state, used by tests and on adapter restart.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastCall = time.Time{}
	l.quotaRemaining = nil
	l.quotaResetAt = nil
}
