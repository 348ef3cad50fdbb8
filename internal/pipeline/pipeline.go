// Package pipeline answers Analyze(symbol): it refreshes the cache, runs the
// three analyzers concurrently and has the synthesizer write the report.
package pipeline

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"quant-agent/internal/analysis"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/report"
	"quant-agent/internal/trace"
	"quant-agent/internal/types"
)

type Option func(*Pipeline)

// WithClock replaces time.Now for the as-of date.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithSupported adds symbols to the "supported symbols" list shown when a
// symbol has no data, on top of whatever the cache holds.
func WithSupported(symbols []string) Option {
	return func(p *Pipeline) { p.supported = symbols }
}

type Pipeline struct {
	store     interfaces.CacheStore
	refresher interfaces.Refresher
	sentiment *analysis.Sentiment
	synth     *report.Synthesizer
	supported []string
	now       func() time.Time
}

var _ interfaces.Agent = (*Pipeline)(nil)

// New wires the pipeline. refresher may be nil to analyse cached data only.
func New(store interfaces.CacheStore, refresher interfaces.Refresher, sentiment *analysis.Sentiment,
	synth *report.Synthesizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		refresher: refresher,
		sentiment: sentiment,
		synth:     synth,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze returns *types.NoDataError, before any analyzer or model call,
// when symbol has no price history after the refresh attempt. Every other
// failure degrades inside the report.
func (p *Pipeline) Analyze(ctx context.Context, symbol string) (types.Report, error) {
	symbol = types.CanonicalSymbol(symbol)
	asOf := p.now()

	var refreshErr error
	if p.refresher != nil && symbol != "" {
		if refreshErr = p.refresher.Refresh(ctx, symbol); refreshErr != nil {
			logger.Warn(ctx, "Refresh incomplete, using cached data", "symbol", symbol, "error", refreshErr)
		}
	}

	bars, err := p.store.GetPrices(ctx, symbol)
	if err != nil || len(bars) == 0 || symbol == "" {
		cause := refreshErr
		if err != nil {
			cause = err
		}
		return types.Report{}, &types.NoDataError{
			Symbol:    symbol,
			Supported: p.supportedSymbols(ctx),
			Cause:     cause,
		}
	}

	news, err := p.store.GetNews(ctx, symbol)
	if err != nil {
		logger.Warn(ctx, "News unavailable", "symbol", symbol, "error", err)
	}
	fin, err := p.store.GetFinancials(ctx, symbol)
	if err != nil {
		logger.Warn(ctx, "Financials unavailable", "symbol", symbol, "error", err)
	}

	tech, senti, fund := p.runAnalyzers(ctx, symbol, bars, news, fin)

	body := p.synth.GenerateReport(ctx, symbol, tech.Summary, senti.Summary, fund.Summary, asOf)
	return types.Report{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		GeneratedAt: asOf,
		Body:        body,
	}, nil
}

// runAnalyzers runs the three stages concurrently and waits for all of them.
// Each works on its own snapshot.
func (p *Pipeline) runAnalyzers(ctx context.Context, symbol string, bars []types.PriceBar,
	news []types.NewsItem, fin types.FinancialStatementSet) (types.TechnicalResult, types.SentimentResult, types.FundamentalResult) {
	var (
		wg    sync.WaitGroup
		tech  types.TechnicalResult
		senti types.SentimentResult
		fund  types.FundamentalResult
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		_, span := trace.StartSpan(ctx, "analysis.Technical", trace.WithSymbol(symbol))
		defer span.End()
		tech = analysis.Technical(bars)
	}()
	go func() {
		defer wg.Done()
		sctx, span := trace.StartSpan(ctx, "analysis.Sentiment", trace.WithSymbol(symbol))
		defer span.End()
		senti = p.sentiment.Analyze(sctx, symbol, news)
	}()
	go func() {
		defer wg.Done()
		_, span := trace.StartSpan(ctx, "analysis.Fundamental", trace.WithSymbol(symbol))
		defer span.End()
		fund = analysis.Fundamental(fin)
	}()
	wg.Wait()

	logger.Debug(ctx, "Analyzers finished",
		"symbol", symbol,
		"technical_insufficient", tech.Insufficient,
		"sentiment_degraded", senti.Degraded,
		"fundamental_unresolved", fund.Unresolved)
	return tech, senti, fund
}

func (p *Pipeline) supportedSymbols(ctx context.Context) []string {
	cached, err := p.store.Symbols(ctx)
	if err != nil {
		logger.Warn(ctx, "Could not list cached symbols", "error", err)
	}
	all := make([]string, 0, len(cached)+len(p.supported))
	for _, s := range append(cached, p.supported...) {
		if s = types.CanonicalSymbol(s); s != "" {
			all = append(all, s)
		}
	}
	slices.Sort(all)
	return slices.Compact(all)
}
