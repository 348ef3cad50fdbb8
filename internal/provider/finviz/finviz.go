// Package finviz scrapes the headline table of a finviz quote page. It is a
// fallback news source for symbols the primary provider returns nothing for.
package finviz

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"quant-agent/internal/api"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/quota"
	"quant-agent/internal/trace"
	"quant-agent/internal/types"
)

const (
	ProviderName = "finviz"
	quotePath    = "/quote.ashx"
	rowSelector  = "table#news-table tr"

	// finviz prints headline times in US Eastern
	stampLayout = "Jan-02-06 03:04PM"
	timeLayout  = "03:04PM"
)

var _ interfaces.NewsFetcher = (*Scraper)(nil)

type Scraper struct {
	baseURL  string
	gate     *quota.Gate
	timeout  time.Duration
	maxItems int
	loc      *time.Location
	now      func() time.Time
}

func New(baseURL string, gate *quota.Gate, timeout time.Duration) *Scraper {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Scraper{
		baseURL:  strings.TrimRight(baseURL, "/"),
		gate:     gate,
		timeout:  timeout,
		maxItems: 50,
		loc:      loc,
		now:      time.Now,
	}
}

// FetchNews visits the quote page once and returns its headlines in page
// order, which is most recent first. The article URL is the source id.
func (s *Scraper) FetchNews(ctx context.Context, symbol string) ([]types.NewsItem, error) {
	symbol = types.CanonicalSymbol(symbol)

	ctx, span := trace.StartSpan(ctx, "finviz.FetchNews", trace.WithSymbol(symbol))
	defer span.End()

	if err := quota.Admit(ctx, s.gate); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		for k, v := range api.BrowserHeaders() {
			r.Headers.Set(k, v)
		}
	})

	var (
		items    []types.NewsItem
		seen     = map[string]bool{}
		lastDay  time.Time
		visitErr error
	)

	c.OnHTML(rowSelector, func(e *colly.HTMLElement) {
		if len(items) >= s.maxItems {
			return
		}
		item, day, ok := s.parseRow(e.DOM, symbol, lastDay)
		if !ok || seen[item.SourceID] {
			return
		}
		lastDay = day
		seen[item.SourceID] = true
		items = append(items, item)
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = &types.ProviderError{
			Provider:   ProviderName,
			Endpoint:   quotePath,
			StatusCode: r.StatusCode,
			Reason:     "quote page request failed",
			Err:        err,
		}
	})

	target := fmt.Sprintf("%s%s?t=%s", s.baseURL, quotePath, url.QueryEscape(symbol))
	if err := c.Visit(target); err != nil && visitErr == nil {
		visitErr = &types.ProviderError{Provider: ProviderName, Endpoint: quotePath, Reason: "visit failed", Err: err}
	}
	c.Wait()

	if visitErr != nil {
		trace.RecordError(ctx, visitErr)
		return nil, visitErr
	}

	logger.Debug(ctx, "Scraped headlines", "provider", ProviderName, "symbol", symbol, "items", len(items))
	return items, nil
}

// parseRow reads one table row. Rows that only carry a time reuse the date
// of the row above them.
func (s *Scraper) parseRow(row *goquery.Selection, symbol string, lastDay time.Time) (types.NewsItem, time.Time, bool) {
	link := row.Find("a.tab-link-news").First()
	if link.Length() == 0 {
		link = row.Find("a").First()
	}
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return types.NewsItem{}, lastDay, false
	}
	if strings.HasPrefix(href, "/") {
		href = s.baseURL + href
	}

	stamp := strings.Join(strings.Fields(row.Find("td").First().Text()), " ")
	published, day := s.parseStamp(stamp, lastDay)

	publisher := strings.Trim(strings.TrimSpace(row.Find("div.news-link-right span").First().Text()), "()")

	return types.NewsItem{
		Title:       title,
		PublishedAt: published,
		Symbol:      symbol,
		SourceID:    href,
		URL:         href,
		Publisher:   publisher,
	}, day, true
}

func (s *Scraper) parseStamp(stamp string, lastDay time.Time) (time.Time, time.Time) {
	if strings.HasPrefix(stamp, "Today ") {
		now := s.now().In(s.loc)
		stamp = now.Format("Jan-02-06") + strings.TrimPrefix(stamp, "Today")
	}

	if t, err := time.ParseInLocation(stampLayout, stamp, s.loc); err == nil {
		y, m, d := t.Date()
		return t.UTC(), time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	}

	if t, err := time.ParseInLocation(timeLayout, stamp, s.loc); err == nil && !lastDay.IsZero() {
		full := lastDay.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		return full.UTC(), lastDay
	}

	return time.Time{}, lastDay
}
