package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestClient creates a client pointing at handler whose sleeps are recorded
// instead of performed.
func setupTestClient(t *testing.T, handler http.Handler) (*Client, *[]time.Duration) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), server.URL, "test-token", DefaultRetryPolicy(), zap.NewNop())
	var sleeps []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	client.now = func() time.Time { return fixedNow }
	return client, &sleeps
}

func TestNewClient(t *testing.T) {
	client := NewClient(http.DefaultClient, "https://api.github.com/", "", RetryPolicy{}, nil)

	assert.NotNil(t, client)
	assert.Equal(t, "https://api.github.com", client.address)
	assert.Equal(t, 1, client.policy.MaxAttempts)
	assert.NotNil(t, client.log)
}

func TestClientGet(t *testing.T) {
	var requestCount int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, "/users/octocat", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"login":"octocat"}`)
	})
	client, sleeps := setupTestClient(t, handler)

	body, err := client.Get(context.Background(), "/users/octocat", map[string][]string{"page": {"2"}})

	require.NoError(t, err)
	assert.JSONEq(t, `{"login":"octocat"}`, string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	assert.Empty(t, *sleeps)
}

func TestClientGetWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "", DefaultRetryPolicy(), zap.NewNop())
	_, err := client.Get(context.Background(), "users/octocat/repos", nil)
	require.NoError(t, err)
}

func TestClientGetRetry(t *testing.T) {
	t.Run("retries on 503 server error and succeeds", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `{}`)
		})
		client, sleeps := setupTestClient(t, handler)

		_, err := client.Get(context.Background(), "users/octocat", nil)

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
		assert.Equal(t, []time.Duration{time.Second}, *sleeps)
	})

	t.Run("fails after max retries on persistent server error", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		client, sleeps := setupTestClient(t, handler)

		_, err := client.Get(context.Background(), "users/octocat", nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransient)
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
		assert.Equal(t, 3, reqErr.Attempts)
		assert.Equal(t, "users/octocat", reqErr.Path)
		assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		for _, code := range []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden} {
			var requestCount int32
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&requestCount, 1)
				w.WriteHeader(code)
			})
			client, sleeps := setupTestClient(t, handler)

			_, err := client.Get(context.Background(), "repos/octocat/x/readme", nil)

			assert.ErrorIs(t, err, ErrClientStatus, "status %d", code)
			assert.Equal(t, code, StatusCode(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
			assert.Empty(t, *sleeps)
		}
	})

	t.Run("retries transport errors", func(t *testing.T) {
		doer := &failingDoer{}
		client := NewClient(doer, "http://example.invalid", "", DefaultRetryPolicy(), zap.NewNop())
		client.sleep = func(context.Context, time.Duration) error { return nil }

		_, err := client.Get(context.Background(), "users/octocat", nil)

		assert.ErrorIs(t, err, ErrTransient)
		assert.ErrorIs(t, err, errConnReset)
		assert.Equal(t, 3, doer.calls)
	})
}

func TestClientGetRateLimit(t *testing.T) {
	t.Run("waits for a short reset and retries", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestCount, 1) == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", fixedNow.Add(20*time.Second).Unix()))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
				return
			}
			fmt.Fprint(w, `{}`)
		})
		client, sleeps := setupTestClient(t, handler)

		_, err := client.Get(context.Background(), "users/octocat", nil)

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
		assert.Equal(t, []time.Duration{20 * time.Second}, *sleeps)
	})

	t.Run("surfaces a reset beyond the ceiling", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", fixedNow.Add(30*time.Minute).Unix()))
			w.WriteHeader(http.StatusForbidden)
		})
		client, sleeps := setupTestClient(t, handler)

		_, err := client.Get(context.Background(), "users/octocat", nil)

		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, http.StatusForbidden, StatusCode(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
		assert.Empty(t, *sleeps)
	})

	t.Run("repeated short waits consume the retry budget", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusForbidden)
		})
		client, sleeps := setupTestClient(t, handler)

		_, err := client.Get(context.Background(), "users/octocat", nil)

		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
		assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *sleeps)
	})
}

func TestClientGetCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(server.Client(), server.URL, "", DefaultRetryPolicy(), zap.NewNop())
	client.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := client.Get(ctx, "users/octocat", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientGetInvalidJSON(t *testing.T) {
	client, _ := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":`)
	}))

	_, err := client.Get(context.Background(), "users/octocat", nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestClientGetInto(t *testing.T) {
	client, _ := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Go": 1200, "Shell": 40}`)
	}))

	var langs map[string]int64
	require.NoError(t, client.GetInto(context.Background(), "repos/octocat/x/languages", nil, &langs))
	assert.Equal(t, map[string]int64{"Go": 1200, "Shell": 40}, langs)

	var wrongShape []string
	err := client.GetInto(context.Background(), "repos/octocat/x/languages", nil, &wrongShape)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRateLimitStatus(t *testing.T) {
	client, _ := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		fmt.Fprint(w, `{"resources":{"core":{"limit":5000,"remaining":4990,"reset":1709294400}}}`)
	}))

	rl, err := client.RateLimitStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5000, rl.Limit)
	assert.Equal(t, 4990, rl.Remaining)
	assert.Equal(t, time.Unix(1709294400, 0), rl.Reset)
}

var errConnReset = errors.New("connection reset by peer")

type failingDoer struct {
	calls int
}

func (d *failingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, errConnReset
}
