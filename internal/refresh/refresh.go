// Package refresh brings the cache up to date for one symbol by calling the
// provider fetchers and saving what they return.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quant-agent/internal/api"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/types"
)

type Config struct {
	// TTL is how long a successful refresh of one kind stays fresh.
	TTL time.Duration
	// HistoryStart is the first date fetched for a symbol with no bars.
	HistoryStart time.Time
	Retry        *api.RetryConfig
	// Deadline bounds each kind's fetch including quota waits; zero means none.
	Deadline time.Duration
}

type Option func(*Refresher)

// WithFallbackNews sets a secondary headline source used when the primary
// fails or returns nothing.
func WithFallbackNews(f interfaces.NewsFetcher) Option {
	return func(r *Refresher) { r.fallback = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

type Refresher struct {
	store      interfaces.CacheStore
	prices     interfaces.PriceFetcher
	news       interfaces.NewsFetcher
	fallback   interfaces.NewsFetcher
	financials interfaces.FinancialsFetcher
	cfg        Config
	now        func() time.Time
}

var _ interfaces.Refresher = (*Refresher)(nil)

func New(store interfaces.CacheStore, prices interfaces.PriceFetcher, news interfaces.NewsFetcher,
	financials interfaces.FinancialsFetcher, cfg Config, opts ...Option) *Refresher {
	if cfg.Retry == nil {
		cfg.Retry = api.DefaultRetryConfig()
	}
	r := &Refresher{
		store:      store,
		prices:     prices,
		news:       news,
		financials: financials,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stale reports whether kind has never been refreshed for symbol or was
// refreshed longer than TTL ago.
func (r *Refresher) Stale(ctx context.Context, symbol string, kind types.DataKind) (bool, error) {
	at, ok, err := r.store.Freshness(ctx, symbol, kind)
	if err != nil {
		return true, err
	}
	return !ok || r.now().Sub(at) >= r.cfg.TTL, nil
}

// Refresh fetches every stale kind and saves each result before moving on.
// Kinds fail independently; the returned error joins every failure.
func (r *Refresher) Refresh(ctx context.Context, symbol string) error {
	symbol = types.CanonicalSymbol(symbol)

	op := logger.StartOperation(ctx, "refresh", "symbol", symbol)
	ctx = op.GetContext()

	var errs []error
	refreshed := 0
	for _, kind := range types.AllKinds {
		stale, err := r.Stale(ctx, symbol, kind)
		if err != nil {
			logger.Warn(ctx, "Freshness check failed, refreshing anyway", "symbol", symbol, "kind", kind, "error", err)
		}
		if !stale {
			continue
		}

		if err := r.refreshKind(ctx, symbol, kind); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		refreshed++
	}

	err := errors.Join(errs...)
	if err != nil {
		op.EndWithError(err, "refreshed", refreshed)
		return err
	}
	op.End("refreshed", refreshed)
	return nil
}

func (r *Refresher) refreshKind(ctx context.Context, symbol string, kind types.DataKind) error {
	if r.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Deadline)
		defer cancel()
	}

	var err error
	switch kind {
	case types.KindPrices:
		err = r.refreshPrices(ctx, symbol)
	case types.KindNews:
		err = r.refreshNews(ctx, symbol)
	case types.KindFinancials:
		err = r.refreshFinancials(ctx, symbol)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return err
	}
	return r.store.MarkFetched(context.WithoutCancel(ctx), symbol, kind, r.now())
}

// refreshPrices appends bars from the day after the last cached one.
func (r *Refresher) refreshPrices(ctx context.Context, symbol string) error {
	if r.prices == nil {
		return errors.New("no price fetcher configured")
	}
	cached, err := r.store.GetPrices(ctx, symbol)
	if err != nil {
		return err
	}

	start := r.cfg.HistoryStart
	if start.IsZero() {
		start = r.now().AddDate(-1, 0, 0)
	}
	if len(cached) > 0 {
		start = cached[len(cached)-1].Date.AddDate(0, 0, 1)
	}
	now := r.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.After(end) {
		return nil
	}

	var bars []types.PriceBar
	err = api.Retry(ctx, r.cfg.Retry, "prices "+symbol, func(ctx context.Context) error {
		var ferr error
		bars, ferr = r.prices.FetchPrices(ctx, symbol, start, end)
		return ferr
	})
	if err != nil {
		return err
	}

	logger.Debug(ctx, "Fetched price bars", "symbol", symbol, "bars", len(bars),
		"start", start.Format(types.DateLayout), "end", end.Format(types.DateLayout))
	return r.store.SavePrices(context.WithoutCancel(ctx), symbol, bars)
}

func (r *Refresher) refreshNews(ctx context.Context, symbol string) error {
	var items []types.NewsItem
	var err error
	if r.news != nil {
		err = api.Retry(ctx, r.cfg.Retry, "news "+symbol, func(ctx context.Context) error {
			var ferr error
			items, ferr = r.news.FetchNews(ctx, symbol)
			return ferr
		})
	} else {
		err = errors.New("no news fetcher configured")
	}

	if (err != nil || len(items) == 0) && r.fallback != nil {
		if err != nil {
			logger.Warn(ctx, "Primary news source failed, trying fallback", "symbol", symbol, "error", err)
		}
		fallbackItems, ferr := r.fallback.FetchNews(ctx, symbol)
		if ferr == nil {
			items, err = fallbackItems, nil
		} else if err == nil {
			// primary returned nothing, fallback failed: nothing lost
			logger.Warn(ctx, "Fallback news source failed", "symbol", symbol, "error", ferr)
		}
	}
	if err != nil {
		return err
	}
	return r.store.SaveNews(context.WithoutCancel(ctx), symbol, items)
}

// refreshFinancials fetches each stale category on its own, retrying only
// the one that failed, and saves and marks it as soon as it arrives so a
// successful fetch is never paid for twice. The kind as a whole stays stale
// while any category fails.
func (r *Refresher) refreshFinancials(ctx context.Context, symbol string) error {
	if r.financials == nil {
		return errors.New("no financials fetcher configured")
	}

	var errs []error
	for _, category := range r.financials.Categories() {
		kind := types.FinancialsKind(category)
		if stale, _ := r.Stale(ctx, symbol, kind); !stale {
			continue
		}

		var records []types.FinancialRecord
		err := api.Retry(ctx, r.cfg.Retry, "financials "+symbol+" "+category, func(ctx context.Context) error {
			var ferr error
			records, ferr = r.financials.FetchCategory(ctx, symbol, category)
			return ferr
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", category, err))
			continue
		}

		saveCtx := context.WithoutCancel(ctx)
		if len(records) > 0 {
			set := types.FinancialStatementSet{category: records}
			if err := r.store.SaveFinancials(saveCtx, symbol, set); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", category, err))
				continue
			}
		}
		if err := r.store.MarkFetched(saveCtx, symbol, kind, r.now()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", category, err))
		}
	}
	return errors.Join(errs...)
}

// RefreshAll refreshes symbols one after another and returns the joined
// failures. Used by batch collection.
func (r *Refresher) RefreshAll(ctx context.Context, symbols []string) error {
	var errs []error
	for _, s := range symbols {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.Refresh(ctx, s); err != nil {
			logger.ErrorWithErr(ctx, "Refresh failed", err, "symbol", s)
			errs = append(errs, fmt.Errorf("%s: %w", types.CanonicalSymbol(s), err))
			continue
		}
		logger.Info(ctx, "Refreshed", "symbol", types.CanonicalSymbol(s))
	}
	return errors.Join(errs...)
}
