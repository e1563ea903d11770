package github

import (
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy bounds how often and how long the client retries a request.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries for one request, rate-limit waits included.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles for each further one.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff. Zero means no cap.
	MaxDelay time.Duration
	// MaxRateLimitWait is the longest reset wait the client sleeps through.
	MaxRateLimitWait time.Duration
}

// DefaultRetryPolicy returns three attempts with a one second base backoff and a
// one minute rate-limit ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		BaseDelay:        time.Second,
		MaxDelay:         30 * time.Second,
		MaxRateLimitWait: 60 * time.Second,
	}
}

// Backoff returns the delay after the given zero-based failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RateLimitWait computes how long to wait before retrying a rate-limited request.
// Retry-After (seconds) wins over X-RateLimit-Reset (epoch seconds). ok is false when
// there is no hint, when the reset is not in the future, or when the wait exceeds
// MaxRateLimitWait.
func (p RetryPolicy) RateLimitWait(h http.Header, now time.Time) (wait time.Duration, ok bool) {
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			wait = time.Duration(secs) * time.Second
			return wait, wait > 0 && wait <= p.MaxRateLimitWait
		}
	}
	s := h.Get("X-RateLimit-Reset")
	if s == "" {
		return 0, false
	}
	reset, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	wait = time.Unix(reset, 0).Sub(now)
	return wait, wait > 0 && wait <= p.MaxRateLimitWait
}

// isRateLimited reports whether a 403 response signals an exhausted rate limit
// rather than a permission problem.
func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != ""
}
