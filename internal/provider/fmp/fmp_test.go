package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-agent/internal/quota"
	"quant-agent/internal/types"
)

const incomeBody = `[
 {"date":"2023-09-30","symbol":"AAPL","revenue":383285000000,"netIncome":96995000000,"reportedCurrency":"USD"},
 {"date":"2024-09-28","symbol":"AAPL","revenue":391035000000,"netIncome":93736000000,"reportedCurrency":"USD"}
]`

const ratiosBody = `[{"date":"2024-09-28","priceEarningsRatio":37.29,"returnOnEquity":1.6459,"debtRatio":0.84}]`

func TestFetchFinancials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "annual", r.URL.Query().Get("period"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		switch r.URL.Path {
		case "/income-statement/AAPL":
			_, _ = w.Write([]byte(incomeBody))
		case "/ratios/AAPL":
			_, _ = w.Write([]byte(ratiosBody))
		case "/balance-sheet-statement/AAPL":
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	gate := quota.NewGate("fmp", 10, time.Minute)
	c := New(srv.URL, "k", gate, Options{Period: "annual", Limit: 2, IncludeBalanceSheet: true})

	set, err := c.FetchFinancials(context.Background(), "aapl")
	require.NoError(t, err)

	income := set[types.IncomeStatement]
	require.Len(t, income, 2)
	assert.Equal(t, "2024-09-28", income[0].Period, "most recent first")
	assert.InDelta(t, 391035000000, income[0].Metrics["revenue"], 1)
	_, hasCurrency := income[0].Metrics["reportedCurrency"]
	assert.False(t, hasCurrency)

	assert.InDelta(t, 37.29, set[types.Ratios][0].Metrics["priceEarningsRatio"], 1e-9)
	_, hasBalance := set[types.BalanceSheet]
	assert.False(t, hasBalance, "empty categories are omitted")

	assert.Equal(t, 3, gate.Reservations(), "one reservation per category")
}

func TestQuarterlyPlanRestriction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ratios/AAPL" {
			http.Error(w, `{"Error Message":"Special Endpoint"}`, http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(incomeBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", quota.NewGate("fmp", 10, time.Minute), Options{Period: "quarter"})
	set, err := c.FetchFinancials(context.Background(), "AAPL")

	var pe *types.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusForbidden, pe.StatusCode)
	assert.Equal(t, ReasonQuarterlyPlan, pe.Reason)
	assert.Equal(t, "/ratios/AAPL", pe.Endpoint)

	// the category that did succeed is still returned
	assert.Len(t, set[types.IncomeStatement], 2)
	_, hasRatios := set[types.Ratios]
	assert.False(t, hasRatios)
}

func TestErrorMessageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message":"Invalid API KEY."}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "bad", nil, Options{})
	set, err := c.FetchFinancials(context.Background(), "AAPL")

	var pe *types.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Invalid API KEY.", pe.Reason)
	assert.Empty(t, set)
}

func TestFetchCategory(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/ratios/AAPL", r.URL.Path)
		_, _ = w.Write([]byte(ratiosBody))
	}))
	defer srv.Close()

	gate := quota.NewGate("fmp", 10, time.Minute)
	c := New(srv.URL, "k", gate, Options{})
	assert.Equal(t, []string{types.IncomeStatement, types.Ratios}, c.Categories(), "balance sheet is opt-in")

	records, err := c.FetchCategory(context.Background(), "aapl", types.Ratios)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 0.84, records[0].Metrics["debtRatio"], 1e-9)

	_, err = c.FetchCategory(context.Background(), "AAPL", types.BalanceSheet)
	assert.Error(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, gate.Reservations())
}
