package analysis

import (
	"fmt"
	"math"

	"quant-agent/internal/types"
)

const NA = "N/A"

// Metric keys as the financials provider names them.
const (
	KeyRevenue   = "revenue"
	KeyNetIncome = "netIncome"
	KeyPER       = "priceEarningsRatio"
	KeyROE       = "returnOnEquity"
	KeyDebtRatio = "debtRatio"
)

// Lookup reads key from the most recent period of category. It is total:
// a missing category, an empty category, a missing key or a non-finite
// value all report ok=false.
func Lookup(set types.FinancialStatementSet, category, key string) (float64, bool) {
	records := set[category]
	if len(records) == 0 {
		return 0, false
	}
	v, ok := records[0].Metrics[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

type formatter func(float64) string

func billions(v float64) string { return fmt.Sprintf("%.2fB", v/1e9) }
func ratio(v float64) string    { return fmt.Sprintf("%.2f", v) }
func percent(v float64) string  { return fmt.Sprintf("%.1f%%", v*100) }

// Fundamental reads five metrics independently; each missing one becomes
// N/A without affecting the others.
func Fundamental(set types.FinancialStatementSet) types.FundamentalResult {
	unresolved := 0
	field := func(category, key string, f formatter) string {
		v, ok := Lookup(set, category, key)
		if !ok {
			unresolved++
			return NA
		}
		return f(v)
	}

	r := types.FundamentalResult{
		Revenue:   field(types.IncomeStatement, KeyRevenue, billions),
		NetIncome: field(types.IncomeStatement, KeyNetIncome, billions),
		PER:       field(types.Ratios, KeyPER, ratio),
		ROE:       field(types.Ratios, KeyROE, percent),
		DebtRatio: field(types.Ratios, KeyDebtRatio, ratio),
	}
	r.Unresolved = unresolved
	r.Summary = fmt.Sprintf(
		"Latest period revenue %s and net income %s, with P/E %s, ROE %s and debt ratio %s.",
		r.Revenue, r.NetIncome, r.PER, r.ROE, r.DebtRatio)
	return r
}
