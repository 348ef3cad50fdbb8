package polygon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-agent/internal/quota"
	"quant-agent/internal/types"
)

const aggsBody = `{"status":"OK","results":[
 {"t":1704171600000,"o":187.15,"h":188.44,"l":183.89,"c":185.64,"v":82488700},
 {"t":1704258000000,"o":184.22,"h":185.88,"l":183.43,"c":184.25,"v":58414500}
]}`

const newsBody = `{"results":[
 {"id":"a1","title":"Apple unveils new chip","published_utc":"2024-01-03T14:00:00Z","article_url":"https://x/a1","publisher":{"name":"Wire"}},
 {"id":"a1","title":"Apple unveils new chip","published_utc":"2024-01-03T14:00:00Z"},
 {"id":"a2","title":"Supply concerns","published_utc":"2024-01-02T09:00:00Z"}
]}`

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		switch r.URL.Path {
		case "/v2/aggs/ticker/AAPL/range/1/day/2024-01-02/2024-01-03":
			_, _ = w.Write([]byte(aggsBody))
		case "/v2/reference/news":
			assert.Equal(t, "AAPL", r.URL.Query().Get("ticker"))
			_, _ = w.Write([]byte(newsBody))
		case "/v2/aggs/ticker/BAD/range/1/day/2024-01-02/2024-01-03":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.Error(w, `{"status":"NOT_AUTHORIZED"}`, http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func day(s string) time.Time {
	t, _ := time.Parse(types.DateLayout, s)
	return t
}

func TestFetchPrices(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	gate := quota.NewGate("polygon", 5, time.Minute)
	c := New(srv.URL, "test-key", gate)

	bars, err := c.FetchPrices(context.Background(), " aapl ", day("2024-01-02"), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-02", bars[0].Date.Format(types.DateLayout))
	assert.Equal(t, "2024-01-03", bars[1].Date.Format(types.DateLayout))
	assert.InDelta(t, 185.64, bars[0].Close, 1e-9)
	assert.Equal(t, 1, gate.Reservations())
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestFetchPricesEmptyRangeSkipsCall(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	gate := quota.NewGate("polygon", 5, time.Minute)

	bars, err := New(srv.URL, "test-key", gate).FetchPrices(context.Background(), "AAPL", day("2024-01-05"), day("2024-01-03"))
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Zero(t, gate.Reservations())
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestFetchNewsDeduplicates(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	gate := quota.NewGate("polygon", 5, time.Minute)

	items, err := New(srv.URL, "test-key", gate).FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a1", items[0].SourceID)
	assert.Equal(t, "Wire", items[0].Publisher)
	assert.Equal(t, "AAPL", items[1].Symbol)
}

func TestFetchNewsBadTimestampUsesFetchTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":"b1","title":"Undated","published_utc":"yesterday"}]}`))
	}))
	defer srv.Close()

	fetched := time.Date(2024, 1, 5, 16, 0, 0, 0, time.UTC)
	c := New(srv.URL, "test-key", nil)
	c.now = func() time.Time { return fetched }

	items, err := c.FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, fetched, items[0].PublishedAt)
}

func TestProviderErrors(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	gate := quota.NewGate("polygon", 5, time.Minute)
	c := New(srv.URL, "test-key", gate)

	_, err := c.FetchPrices(context.Background(), "BAD", day("2024-01-02"), day("2024-01-03"))
	var pe *types.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "malformed response body", pe.Reason)

	_, err = c.FetchPrices(context.Background(), "ZZZZ", day("2024-01-02"), day("2024-01-03"))
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, ProviderName, pe.Provider)

	// one reservation per HTTP call, failed or not
	assert.Equal(t, 2, gate.Reservations())
}

func TestGateTimeoutMakesNoCall(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	gate := quota.NewGate("polygon", 1, time.Minute)
	c := New(srv.URL, "test-key", gate)

	_, err := c.FetchNews(context.Background(), "AAPL")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.FetchNews(ctx, "AAPL")

	var te *types.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
