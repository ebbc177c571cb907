package scraper

import (
	"math"
	"time"
)

// Default retry knobs. The backoff window mirrors the 2s..10s exponential
// wait the platform has always used for transient scrape failures.
const (
	DefaultMaxRetries  = 3
	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 10 * time.Second
)

// ExponentialRetryPolicy retries transient failures with capped exponential
// backoff. The delay only stalls the calling worker; other workers are
// unaffected.
type ExponentialRetryPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewExponentialRetryPolicy builds a policy with the default backoff window.
func NewExponentialRetryPolicy() *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		baseDelay: defaultBackoffBase,
		maxDelay:  defaultBackoffMax,
	}
}

// NewRetryPolicy builds a policy with an explicit backoff window. Zero values
// fall back to the defaults.
func NewRetryPolicy(base, max time.Duration) *ExponentialRetryPolicy {
	if base <= 0 {
		base = defaultBackoffBase
	}
	if max <= 0 {
		max = defaultBackoffMax
	}
	return &ExponentialRetryPolicy{baseDelay: base, maxDelay: max}
}

// ShouldRetry reports whether a failed attempt should be tried again.
// attempt is zero-based; budget is the number of additional attempts allowed
// after the first failure. Permanent errors never consume retry budget.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int, budget int) bool {
	if err == nil {
		return false
	}
	if attempt >= budget {
		return false
	}
	return IsTransient(err)
}

// Backoff returns the wait before the next attempt: base doubled per attempt,
// capped at the configured maximum. Deterministic so inter-attempt delays are
// non-decreasing.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		return p.maxDelay
	}
	return time.Duration(delay)
}
