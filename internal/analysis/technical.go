// Package analysis holds the three independent analyzers. Each consumes a
// read-only snapshot and returns a self-contained result; none of them
// return errors.
package analysis

import (
	"fmt"
	"math"

	"quant-agent/internal/ta"
	"quant-agent/internal/types"
)

const (
	MinBars   = 30
	RSIPeriod = 14
	SMAPeriod = 20

	Overbought = 70.0
	Oversold   = 30.0
)

// InsufficientSummary is the fixed summary below MinBars.
const InsufficientSummary = "Not enough price history for technical analysis."

const (
	TrendUp   = "up"
	TrendDown = "down"

	StatusOverbought = "overbought"
	StatusOversold   = "oversold"
	StatusNeutral    = "neutral"
)

// Technical computes RSI(14) and SMA(20) on the most recent bar.
func Technical(bars []types.PriceBar) types.TechnicalResult {
	if len(bars) < MinBars {
		return types.TechnicalResult{
			Insufficient: true,
			Bars:         len(bars),
			Summary:      InsufficientSummary,
		}
	}

	closes := ta.Closes(bars)
	last := closes[len(closes)-1]
	sma := ta.SMA(closes, SMAPeriod)
	rsi := ta.RSI(closes, RSIPeriod)
	if math.IsNaN(sma) || math.IsNaN(rsi) {
		return types.TechnicalResult{Insufficient: true, Bars: len(bars), Summary: InsufficientSummary}
	}

	trend := Trend(last, sma)
	status := Status(rsi)
	summary := fmt.Sprintf(
		"Close %.2f against the 20-day moving average %.2f puts the trend %s, and RSI(14) at %.1f is %s.",
		last, sma, trend, rsi, status)

	return types.TechnicalResult{
		Bars:    len(bars),
		Close:   last,
		RSI:     rsi,
		SMA:     sma,
		Trend:   trend,
		Status:  status,
		Summary: summary,
	}
}

// Trend is up only when close is strictly above the average.
func Trend(close, sma float64) string {
	if close > sma {
		return TrendUp
	}
	return TrendDown
}

// Status classifies an RSI value with strict thresholds.
func Status(rsi float64) string {
	switch {
	case rsi > Overbought:
		return StatusOverbought
	case rsi < Oversold:
		return StatusOversold
	default:
		return StatusNeutral
	}
}
