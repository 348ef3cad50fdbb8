package types

import (
	"strings"
	"time"
)

// CanonicalSymbol trims and uppercases a ticker before any lookup or fetch.
func CanonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// DateLayout is the calendar-date layout used for bars, periods and reports.
const DateLayout = "2006-01-02"

type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type NewsItem struct {
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Symbol      string    `json:"symbol"`
	SourceID    string    `json:"source_id"`
	URL         string    `json:"url,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
}

// FinancialRecord is one reporting period of one statement category.
type FinancialRecord struct {
	Period  string             `json:"period"`
	Metrics map[string]float64 `json:"metrics"`
}

// FinancialStatementSet maps a statement category to its periods, most
// recent first. Missing categories and metrics are valid.
type FinancialStatementSet map[string][]FinancialRecord

// Statement categories
const (
	IncomeStatement = "income_statement"
	Ratios          = "ratios"
	BalanceSheet    = "balance_sheet"
)

// DataKind names one of the cached tables.
type DataKind string

const (
	KindPrices     DataKind = "prices"
	KindNews       DataKind = "news"
	KindFinancials DataKind = "financials"
)

// FinancialsKind is the freshness key of one statement category.
func FinancialsKind(category string) DataKind {
	return DataKind(string(KindFinancials) + "/" + category)
}

// AllKinds lists the kinds in refresh order.
var AllKinds = []DataKind{KindPrices, KindNews, KindFinancials}

type TechnicalResult struct {
	Insufficient bool    `json:"insufficient"`
	Bars         int     `json:"bars"`
	Close        float64 `json:"close,omitempty"`
	RSI          float64 `json:"rsi,omitempty"`
	SMA          float64 `json:"sma,omitempty"`
	Trend        string  `json:"trend,omitempty"`
	Status       string  `json:"status,omitempty"`
	Summary      string  `json:"summary"`
}

type SentimentResult struct {
	Headlines int    `json:"headlines"`
	Summary   string `json:"summary"`
	Degraded  bool   `json:"degraded"`
}

type FundamentalResult struct {
	Revenue    string `json:"revenue"`
	NetIncome  string `json:"net_income"`
	PER        string `json:"per"`
	ROE        string `json:"roe"`
	DebtRatio  string `json:"debt_ratio"`
	Summary    string `json:"summary"`
	Unresolved int    `json:"unresolved"`
}

type Report struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	GeneratedAt time.Time `json:"generated_at"`
	Body        string    `json:"body"`
}
