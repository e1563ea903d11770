// Package limiter throttles the outgoing requests of the GitHub client so a fetch
// run stays under a configured request rate on top of the API's own limits.
package limiter

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// HTTPDoer is the transport the GitHub client sends its requests through.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// LimitedHTTPDoer holds each GitHub API request until the limiter admits it.
type LimitedHTTPDoer struct {
	doer    HTTPDoer
	limiter *rate.Limiter
}

// NewHTTPDoer returns the transport for github.NewClient, admitting at most
// requestsPerSecond calls (REQUESTS_PER_SECOND). Zero or less disables throttling.
func NewHTTPDoer(doer HTTPDoer, requestsPerSecond float64) HTTPDoer {
	if requestsPerSecond <= 0 {
		return doer
	}
	return &LimitedHTTPDoer{
		doer:    doer,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Do waits for a request slot, giving up when the request context ends, and then
// sends r. Retries by the client pass through here again and are throttled too.
func (d *LimitedHTTPDoer) Do(r *http.Request) (*http.Response, error) {
	if err := d.limiter.Wait(r.Context()); err != nil {
		return nil, fmt.Errorf("waiting for github request slot: %w", err)
	}
	return d.doer.Do(r)
}
