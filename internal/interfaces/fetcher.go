package interfaces

import (
	"context"
	"time"

	"quant-agent/internal/types"
)

type PriceFetcher interface {
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error)
}

type NewsFetcher interface {
	FetchNews(ctx context.Context, symbol string) ([]types.NewsItem, error)
}

// FinancialsFetcher fetches statements one category at a time so a failed
// category can be retried without refetching the others.
type FinancialsFetcher interface {
	Categories() []string
	FetchCategory(ctx context.Context, symbol, category string) ([]types.FinancialRecord, error)
}
