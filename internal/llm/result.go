// Package llm holds the boundary between analysis code and text generators.
// Every generator failure is turned into a Result here and nowhere else.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/types"
)

// Options is what every provider constructor accepts.
type Options struct {
	Model       string
	Endpoint    string
	APIKey      string
	System      string
	MaxTokens   int
	Temperature float32
}

// Result is the outcome of one generation: text, or why there is none.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the call produced text.
func (r Result) OK() bool { return r.Err == nil }

// OrElse returns the generated text, or sentinel when the call failed.
func (r Result) OrElse(sentinel string) string {
	if r.Err != nil {
		return sentinel
	}
	return r.Text
}

var errEmptyResponse = errors.New("empty response")

// Call runs one generation. A nil generator, an error, a blank answer or a
// panic inside the generator all become an Err wrapping
// types.ErrModelUnavailable.
func Call(ctx context.Context, g interfaces.Generator, model, prompt string) (res Result) {
	if g == nil {
		return Result{Err: fmt.Errorf("%w: no generator configured", types.ErrModelUnavailable)}
	}
	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("%w: generator panic: %v", types.ErrModelUnavailable, p)}
		}
	}()

	text, err := g.Generate(ctx, model, prompt)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", types.ErrModelUnavailable, err)}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Err: fmt.Errorf("%w: %w", types.ErrModelUnavailable, errEmptyResponse)}
	}
	return Result{Text: text}
}
