// Package report turns the three analyzer summaries into a narrative report.
package report

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/llm"
	"quant-agent/internal/logger"
	"quant-agent/internal/types"
)

const (
	StanceBuy  = "BUY"
	StanceSell = "SELL"
	StanceHold = "HOLD"
)

// PlaceholderPrefix starts every body produced when generation failed.
const PlaceholderPrefix = "Report generation failed: "

// DatePrefix starts the line added when the model omits the as-of date.
const DatePrefix = "Report date: "

var stanceRe = regexp.MustCompile(`\b(BUY|SELL|HOLD)\b`)

type Synthesizer struct {
	gen      interfaces.Generator
	model    string
	language string
}

func New(gen interfaces.Generator, model, language string) *Synthesizer {
	if language == "" {
		language = "English"
	}
	return &Synthesizer{gen: gen, model: model, language: language}
}

// Prompt is deterministic for its inputs.
func (s *Synthesizer) Prompt(symbol, technical, sentiment, fundamental string, asOf time.Time) string {
	date := asOf.Format(types.DateLayout)

	var b strings.Builder
	b.WriteString("[System Info]\n")
	fmt.Fprintf(&b, "- Report Date: %s (you must use this date)\n", date)
	b.WriteString("- Role: Senior Quant Analyst\n")
	fmt.Fprintf(&b, "- Target: %s investment report\n", symbol)
	fmt.Fprintf(&b, "- Language: %s\n\n", s.language)

	b.WriteString("[Input Data]\n")
	fmt.Fprintf(&b, "1. Technical Analysis:\n%s\n\n", technical)
	fmt.Fprintf(&b, "2. Market Sentiment (News):\n%s\n\n", sentiment)
	fmt.Fprintf(&b, "3. Fundamental Analysis (Financials):\n%s\n\n", fundamental)

	b.WriteString("[Instructions]\n")
	b.WriteString("Write a professional investment report from the data above.\n")
	fmt.Fprintf(&b, "- Begin with the line 'Report date: %s'.\n", date)
	b.WriteString("- In the financials section, if a figure is N/A write 'data unavailable' instead of guessing.\n")
	b.WriteString("- End with exactly one clear position on its own line: BUY, SELL or HOLD.\n")
	return b.String()
}

// GenerateReport never fails: a generator failure yields a placeholder body
// carrying the reason. A body that leaves out the as-of date gets a
// "Report date:" line in front.
func (s *Synthesizer) GenerateReport(ctx context.Context, symbol, technical, sentiment, fundamental string, asOf time.Time) string {
	res := llm.Call(ctx, s.gen, s.model, s.Prompt(symbol, technical, sentiment, fundamental, asOf))
	if !res.OK() {
		logger.Warn(ctx, "Report generation degraded", "symbol", symbol, "error", res.Err)
		return PlaceholderPrefix + res.Err.Error()
	}

	date := asOf.Format(types.DateLayout)
	if !strings.Contains(res.Text, date) {
		return DatePrefix + date + "\n" + res.Text
	}
	return res.Text
}

// Stance returns the last BUY, SELL or HOLD marker in body, or "".
func Stance(body string) string {
	all := stanceRe.FindAllString(strings.ToUpper(body), -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}
