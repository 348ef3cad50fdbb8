package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/llm"
	"quant-agent/internal/logger"
	"quant-agent/internal/types"
)

const (
	NoNewsSentinel = "No recent news."
	FailedSentinel = "Sentiment analysis failed (model error)."

	DefaultMaxHeadlines = 20
)

// Sentiment asks a model for a one-line classification of recent headlines.
type Sentiment struct {
	gen          interfaces.Generator
	model        string
	language     string
	maxHeadlines int
}

func NewSentiment(gen interfaces.Generator, model, language string, maxHeadlines int) *Sentiment {
	if maxHeadlines <= 0 {
		maxHeadlines = DefaultMaxHeadlines
	}
	if language == "" {
		language = "English"
	}
	return &Sentiment{gen: gen, model: model, language: language, maxHeadlines: maxHeadlines}
}

// Analyze never calls the model for an empty list, and turns any model
// failure into FailedSentinel.
func (s *Sentiment) Analyze(ctx context.Context, symbol string, items []types.NewsItem) types.SentimentResult {
	if len(items) == 0 {
		return types.SentimentResult{Summary: NoNewsSentinel}
	}

	headlines := recentFirst(items, s.maxHeadlines)
	res := llm.Call(ctx, s.gen, s.model, s.prompt(symbol, headlines))
	if !res.OK() {
		logger.Warn(ctx, "Sentiment degraded", "symbol", symbol, "error", res.Err)
	}

	return types.SentimentResult{
		Headlines: len(headlines),
		Summary:   res.OrElse(FailedSentinel),
		Degraded:  !res.OK(),
	}
}

func (s *Sentiment) prompt(symbol string, headlines []types.NewsItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Read the following news headlines about %s and summarise the market sentiment toward the company.\n\n", symbol)
	for _, h := range headlines {
		fmt.Fprintf(&b, "- %s\n", h.Title)
	}
	fmt.Fprintf(&b, "\nAnswer in one line, in %s, and classify the sentiment as exactly one of positive, negative or neutral.", s.language)
	return b.String()
}

// recentFirst returns up to max items ordered by publish time, newest first,
// without modifying items.
func recentFirst(items []types.NewsItem, max int) []types.NewsItem {
	out := make([]types.NewsItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if len(out) > max {
		out = out[:max]
	}
	return out
}
