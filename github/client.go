package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPDoer can execute http request.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// RateLimit represents GitHub's rate limit information
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Client issues GET requests against the GitHub REST API, retrying transient
// failures and waiting out short rate-limit resets according to its RetryPolicy.
// It keeps no state between calls besides its construction-time configuration.
type Client struct {
	doer        HTTPDoer
	address     string
	token       string
	policy      RetryPolicy
	log         *zap.Logger
	maxBodySize int64

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient creates a GitHub client. token is optional; without it the API applies
// the much lower anonymous rate limit.
func NewClient(doer HTTPDoer, address, token string, policy RetryPolicy, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if token == "" {
		log.Warn("No GitHub token provided, rate limits will be low")
	}
	log.Info("Initializing GitHub client",
		zap.String("base_url", address),
		zap.Int("max_attempts", policy.MaxAttempts))

	return &Client{
		doer:        doer,
		address:     strings.TrimRight(address, "/"),
		token:       token,
		policy:      policy,
		log:         log,
		maxBodySize: 32 * 1024 * 1024,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

// Get fetches path (relative to the API root) and returns the raw JSON body of a
// 200 response. Failures are *RequestError values wrapping ErrTransient,
// ErrRateLimited, ErrClientStatus or ErrDecode.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	path = strings.TrimLeft(path, "/")
	reqURL := c.address + "/" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastErr *RequestError
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		log := c.log.With(zap.String("path", path), zap.Int("attempt", attempt+1))

		body, resp, err := c.do(ctx, reqURL)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("GET %s: %w", path, ctx.Err())
			}
			log.Warn("Request failed", zap.Error(err))
			lastErr = &RequestError{Path: path, Kind: ErrTransient, Cause: err}
			wait = c.policy.Backoff(attempt)

		case resp.StatusCode == http.StatusOK:
			if !json.Valid(body) {
				return nil, &RequestError{Path: path, StatusCode: resp.StatusCode, Attempts: attempt + 1, Kind: ErrDecode}
			}
			return body, nil

		case isRateLimited(resp):
			var ok bool
			wait, ok = c.policy.RateLimitWait(resp.Header, c.now())
			rl := parseRateLimit(resp)
			if !ok {
				log.Error("Rate limit exceeded, reset too far away",
					zap.Int("limit", rl.Limit),
					zap.Time("reset_time", rl.Reset),
					zap.Duration("wait_time", wait))
				return nil, &RequestError{
					Path:       path,
					StatusCode: resp.StatusCode,
					Attempts:   attempt + 1,
					Kind:       ErrRateLimited,
					Cause:      fmt.Errorf("reset in %s exceeds %s", wait.Round(time.Second), c.policy.MaxRateLimitWait),
				}
			}
			log.Info("Rate limit exceeded, waiting for reset",
				zap.Int("limit", rl.Limit),
				zap.Time("reset_time", rl.Reset),
				zap.Duration("wait_time", wait))
			lastErr = &RequestError{Path: path, StatusCode: resp.StatusCode, Kind: ErrRateLimited}

		case resp.StatusCode >= http.StatusInternalServerError:
			log.Warn("Server error", zap.Int("status_code", resp.StatusCode))
			lastErr = &RequestError{Path: path, StatusCode: resp.StatusCode, Kind: ErrTransient}
			wait = c.policy.Backoff(attempt)

		default:
			log.Debug("Request rejected", zap.Int("status_code", resp.StatusCode))
			return nil, &RequestError{Path: path, StatusCode: resp.StatusCode, Attempts: attempt + 1, Kind: ErrClientStatus}
		}

		if attempt+1 >= c.policy.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("GET %s: %w", path, err)
		}
	}

	lastErr.Attempts = c.policy.MaxAttempts
	c.log.Error("Giving up on request",
		zap.String("path", path),
		zap.Int("status_code", lastErr.StatusCode),
		zap.Int("attempts", lastErr.Attempts))
	return nil, lastErr
}

// GetInto fetches path and decodes the JSON body into v.
func (c *Client) GetInto(ctx context.Context, path string, query url.Values, v any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &RequestError{Path: strings.TrimLeft(path, "/"), StatusCode: http.StatusOK, Attempts: 1, Kind: ErrDecode, Cause: err}
	}
	return nil
}

// RateLimitStatus returns the core rate limit bucket for the configured credential.
func (c *Client) RateLimitStatus(ctx context.Context) (RateLimit, error) {
	var resp struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := c.GetInto(ctx, "rate_limit", nil, &resp); err != nil {
		return RateLimit{}, err
	}
	core := resp.Resources.Core
	return RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     time.Unix(core.Reset, 0),
	}, nil
}

// do executes a single GET and returns the (size-limited) body of a 200 response.
func (c *Client) do(ctx context.Context, reqURL string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("doing http request: %w", err)
	}
	// Always drain body before close to allow connection reuse.
	defer func() {
		_, _ = io.CopyN(io.Discard, resp.Body, 1024)
		resp.Body.Close()
	}()

	c.log.Debug("Rate limit remaining", zap.String("remaining", resp.Header.Get("X-RateLimit-Remaining")))

	if resp.StatusCode != http.StatusOK {
		return nil, resp, nil
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("reading http response body: %w", err)
	}
	return b, resp, nil
}

// parseRateLimit parses rate limit information from response headers
func parseRateLimit(resp *http.Response) RateLimit {
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)

	return RateLimit{
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Unix(reset, 0),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
