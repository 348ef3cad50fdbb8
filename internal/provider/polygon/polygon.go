// Package polygon fetches daily price bars and news headlines from the
// Polygon.io REST API. Every HTTP call reserves one slot on the shared gate.
package polygon

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"quant-agent/internal/api"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/quota"
	"quant-agent/internal/trace"
	"quant-agent/internal/types"
)

const (
	ProviderName     = "polygon"
	DefaultNewsLimit = 50
)

var (
	_ interfaces.PriceFetcher = (*Client)(nil)
	_ interfaces.NewsFetcher  = (*Client)(nil)
)

type Client struct {
	http      *api.Client
	gate      *quota.Gate
	apiKey    string
	newsLimit int
	now       func() time.Time
}

// New builds a client. The gate must be the single instance shared by all
// Polygon call sites.
func New(baseURL, apiKey string, gate *quota.Gate, opts ...api.ClientOption) *Client {
	opts = append([]api.ClientOption{api.WithBaseURL(baseURL), api.WithLogging(true)}, opts...)
	return &Client{
		http:      api.NewClient(ProviderName, opts...),
		gate:      gate,
		apiKey:    apiKey,
		newsLimit: DefaultNewsLimit,
		now:       time.Now,
	}
}

type aggsResponse struct {
	Status  string `json:"status"`
	Results []struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
		V float64 `json:"v"`
	} `json:"results"`
}

// FetchPrices returns daily bars between start and end inclusive, ordered by
// date. An empty range makes no call.
func (c *Client) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error) {
	symbol = types.CanonicalSymbol(symbol)
	if start.After(end) {
		return nil, nil
	}

	ctx, span := trace.StartSpan(ctx, "polygon.FetchPrices", trace.WithSymbol(symbol))
	defer span.End()

	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(symbol), start.Format(types.DateLayout), end.Format(types.DateLayout))
	q := url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {"50000"},
		"apiKey":   {c.apiKey},
	}

	var out aggsResponse
	if err := c.get(ctx, path, q, &out); err != nil {
		trace.RecordError(ctx, err)
		return nil, err
	}

	bars := make([]types.PriceBar, 0, len(out.Results))
	var last time.Time
	for _, r := range out.Results {
		ts := time.UnixMilli(r.T).UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		if !last.IsZero() && !day.After(last) {
			continue
		}
		last = day
		bars = append(bars, types.PriceBar{
			Date:   day,
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Close:  r.C,
			Volume: r.V,
		})
	}
	return bars, nil
}

type newsResponse struct {
	Results []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		PublishedUTC string `json:"published_utc"`
		ArticleURL   string `json:"article_url"`
		Publisher    struct {
			Name string `json:"name"`
		} `json:"publisher"`
	} `json:"results"`
}

// FetchNews returns the latest headlines for symbol, most recent first,
// de-duplicated by source id.
func (c *Client) FetchNews(ctx context.Context, symbol string) ([]types.NewsItem, error) {
	symbol = types.CanonicalSymbol(symbol)

	ctx, span := trace.StartSpan(ctx, "polygon.FetchNews", trace.WithSymbol(symbol))
	defer span.End()

	q := url.Values{
		"ticker": {symbol},
		"order":  {"desc"},
		"sort":   {"published_utc"},
		"limit":  {strconv.Itoa(c.newsLimit)},
		"apiKey": {c.apiKey},
	}

	var out newsResponse
	if err := c.get(ctx, "/v2/reference/news", q, &out); err != nil {
		trace.RecordError(ctx, err)
		return nil, err
	}

	seen := make(map[string]bool, len(out.Results))
	items := make([]types.NewsItem, 0, len(out.Results))
	for _, r := range out.Results {
		id := r.ID
		if id == "" {
			id = r.ArticleURL
		}
		if id == "" || r.Title == "" || seen[id] {
			continue
		}
		seen[id] = true

		published, err := time.Parse(time.RFC3339, r.PublishedUTC)
		if err != nil {
			// keep the headline, stamped with the fetch time
			logger.Debug(ctx, "Unparseable news timestamp", "symbol", symbol, "id", id, "published_utc", r.PublishedUTC)
			published = c.now()
		}
		items = append(items, types.NewsItem{
			Title:       r.Title,
			PublishedAt: published.UTC(),
			Symbol:      symbol,
			SourceID:    id,
			URL:         r.ArticleURL,
			Publisher:   r.Publisher.Name,
		})
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	if err := quota.Admit(ctx, c.gate); err != nil {
		return err
	}
	resp, err := c.http.GET(ctx, path, q)
	if err != nil {
		return err
	}
	return resp.ParseJSON(ProviderName, path, v)
}
