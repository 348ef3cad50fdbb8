// Package fmp fetches financial statements from Financial Modeling Prep.
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"quant-agent/internal/api"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/quota"
	"quant-agent/internal/trace"
	"quant-agent/internal/types"
)

const ProviderName = "fmp"

// ReasonQuarterlyPlan is attached to a 403 on quarterly statements.
const ReasonQuarterlyPlan = "plan tier does not include quarterly statements"

var _ interfaces.FinancialsFetcher = (*Client)(nil)

// endpoint maps a statement category to its FMP path segment.
type endpoint struct {
	category string
	path     string
}

var (
	incomeEndpoint  = endpoint{types.IncomeStatement, "income-statement"}
	ratiosEndpoint  = endpoint{types.Ratios, "ratios"}
	balanceEndpoint = endpoint{types.BalanceSheet, "balance-sheet-statement"}
)

type Options struct {
	Period              string // annual or quarter
	Limit               int
	IncludeBalanceSheet bool
}

type Client struct {
	http      *api.Client
	gate      *quota.Gate
	apiKey    string
	opts      Options
	endpoints []endpoint
}

// New builds a client using its own gate, independent of other providers.
func New(baseURL, apiKey string, gate *quota.Gate, o Options, opts ...api.ClientOption) *Client {
	if o.Period == "" {
		o.Period = "annual"
	}
	if o.Limit <= 0 {
		o.Limit = 4
	}
	eps := []endpoint{incomeEndpoint, ratiosEndpoint}
	if o.IncludeBalanceSheet {
		eps = append(eps, balanceEndpoint)
	}

	opts = append([]api.ClientOption{api.WithBaseURL(baseURL), api.WithLogging(true)}, opts...)
	return &Client{
		http:      api.NewClient(ProviderName, opts...),
		gate:      gate,
		apiKey:    apiKey,
		opts:      o,
		endpoints: eps,
	}
}

// Categories lists the statement categories this client fetches, in order.
func (c *Client) Categories() []string {
	out := make([]string, len(c.endpoints))
	for i, ep := range c.endpoints {
		out[i] = ep.category
	}
	return out
}

// FetchCategory issues one GET for one statement category.
func (c *Client) FetchCategory(ctx context.Context, symbol, category string) ([]types.FinancialRecord, error) {
	symbol = types.CanonicalSymbol(symbol)
	for _, ep := range c.endpoints {
		if ep.category == category {
			ctx, span := trace.StartSpan(ctx, "fmp.FetchCategory", trace.WithSymbol(symbol))
			defer span.End()

			records, err := c.fetchCategory(ctx, symbol, ep)
			trace.RecordError(ctx, err)
			return records, err
		}
	}
	return nil, fmt.Errorf("fmp: unknown statement category %q", category)
}

// FetchFinancials issues one GET per statement category. Categories that
// fail are left out of the set; the returned error joins their failures and
// is non-nil whenever any category failed.
func (c *Client) FetchFinancials(ctx context.Context, symbol string) (types.FinancialStatementSet, error) {
	symbol = types.CanonicalSymbol(symbol)

	ctx, span := trace.StartSpan(ctx, "fmp.FetchFinancials", trace.WithSymbol(symbol))
	defer span.End()

	set := make(types.FinancialStatementSet, len(c.endpoints))
	var errs []error
	for _, ep := range c.endpoints {
		records, err := c.fetchCategory(ctx, symbol, ep)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(records) > 0 {
			set[ep.category] = records
		}
	}

	err := errors.Join(errs...)
	trace.RecordError(ctx, err)
	return set, err
}

func (c *Client) fetchCategory(ctx context.Context, symbol string, ep endpoint) ([]types.FinancialRecord, error) {
	if err := quota.Admit(ctx, c.gate); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/%s/%s", ep.path, url.PathEscape(symbol))
	q := url.Values{
		"period": {c.opts.Period},
		"limit":  {strconv.Itoa(c.opts.Limit)},
		"apikey": {c.apiKey},
	}

	resp, err := c.http.GET(ctx, path, q)
	if err != nil {
		var pe *types.ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusForbidden && c.opts.Period == "quarter" {
			pe.Reason = ReasonQuarterlyPlan
		}
		logger.Warn(ctx, "Financial statement fetch failed",
			"symbol", symbol, "category", ep.category, "error", err)
		return nil, err
	}

	return decodeStatements(resp, path)
}

// decodeStatements turns an FMP array of flat objects into records keyed by
// the statement date, most recent first. Only numeric fields become metrics.
func decodeStatements(resp *api.Response, path string) ([]types.FinancialRecord, error) {
	var rows []map[string]any
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		// FMP reports some errors as a 200 with an object body
		var msg struct {
			Error string `json:"Error Message"`
		}
		if json.Unmarshal(resp.Body, &msg) == nil && msg.Error != "" {
			return nil, &types.ProviderError{
				Provider: ProviderName, Endpoint: path, StatusCode: resp.StatusCode, Reason: msg.Error,
			}
		}
		return nil, resp.ParseJSON(ProviderName, path, &rows)
	}

	records := make([]types.FinancialRecord, 0, len(rows))
	for _, row := range rows {
		period, _ := row["date"].(string)
		if period == "" {
			continue
		}
		metrics := make(map[string]float64, len(row))
		for k, v := range row {
			if f, ok := v.(float64); ok {
				metrics[k] = f
			}
		}
		records = append(records, types.FinancialRecord{Period: period, Metrics: metrics})
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Period > records[j].Period })
	return records, nil
}
