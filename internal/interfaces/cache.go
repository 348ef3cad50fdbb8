package interfaces

import (
	"context"
	"time"

	"quant-agent/internal/types"
)

// CacheStore owns every persisted price, news and financial record.
// Reads never fetch; an empty result means nothing was collected yet.
type CacheStore interface {
	GetPrices(ctx context.Context, symbol string) ([]types.PriceBar, error)
	GetNews(ctx context.Context, symbol string) ([]types.NewsItem, error)
	GetFinancials(ctx context.Context, symbol string) (types.FinancialStatementSet, error)

	SavePrices(ctx context.Context, symbol string, bars []types.PriceBar) error
	SaveNews(ctx context.Context, symbol string, items []types.NewsItem) error
	SaveFinancials(ctx context.Context, symbol string, set types.FinancialStatementSet) error

	// Freshness returns when kind was last refreshed for symbol; ok is false
	// if it never was.
	Freshness(ctx context.Context, symbol string, kind types.DataKind) (at time.Time, ok bool, err error)
	MarkFetched(ctx context.Context, symbol string, kind types.DataKind, at time.Time) error

	Symbols(ctx context.Context) ([]string, error)
}
