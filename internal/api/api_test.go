package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-agent/internal/types"
)

func TestGETSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ping", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("demo", WithBaseURL(srv.URL+"/"), WithHeader("X-Test", "yes"))
	resp, err := c.GET(context.Background(), "/v1/ping", url.Values{"apiKey": {"secret"}})
	require.NoError(t, err)

	var out struct{ OK bool }
	require.NoError(t, resp.ParseJSON("demo", "/v1/ping", &out))
	assert.True(t, out.OK)
}

func TestNon2xxBecomesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plan limit", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("fmp", WithBaseURL(srv.URL))
	_, err := c.GET(context.Background(), "/ratios/AAPL", url.Values{"apikey": {"k"}})

	var pe *types.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "fmp", pe.Provider)
	assert.Equal(t, "/ratios/AAPL", pe.Endpoint)
	assert.Equal(t, http.StatusForbidden, pe.StatusCode)
	assert.Equal(t, "plan limit", pe.Reason)
	assert.NotContains(t, err.Error(), "apikey")
}

func TestMalformedBody(t *testing.T) {
	resp := &Response{StatusCode: 200, Body: []byte("<html>")}
	var v map[string]any
	err := resp.ParseJSON("polygon", "/v2/aggs", &v)

	var pe *types.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 200, pe.StatusCode)
	assert.Equal(t, "malformed response body", pe.Reason)
}

func TestPOSTSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("ollama", WithBaseURL(srv.URL))
	_, err := c.POST(context.Background(), "/api/chat", map[string]string{"model": "m"})
	require.NoError(t, err)
}

func TestCanceledContextIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient("slow", WithBaseURL(srv.URL)).GET(ctx, "/", nil)
	var te *types.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(errors.New("connection reset")))
	assert.True(t, Retryable(&types.ProviderError{StatusCode: 503}))
	assert.True(t, Retryable(&types.ProviderError{StatusCode: 429}))
	assert.False(t, Retryable(&types.ProviderError{StatusCode: 403}))
	assert.False(t, Retryable(&types.TimeoutError{Op: "x", Err: context.DeadlineExceeded}))
}

func TestRetryBacksOffAndStops(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}

	calls := 0
	err := Retry(context.Background(), cfg, "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &types.ProviderError{StatusCode: 500}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), cfg, "forbidden", func(ctx context.Context) error {
		calls++
		return &types.ProviderError{StatusCode: 403}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Retry(context.Background(), cfg, "down", func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "all 3 retry attempts failed")
}
