// Package claude generates text with the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/llm"
	"quant-agent/internal/logger"
	"quant-agent/internal/trace"
)

const DefaultModel = "claude-3-5-haiku-latest"

var _ interfaces.Generator = (*Generator)(nil)

type Generator struct {
	client anthropic.Client
	opts   llm.Options
}

// New reads ANTHROPIC_API_KEY when opts carries no key. The SDK's own
// retries are disabled; retry policy belongs to the caller.
func New(opts llm.Options) *Generator {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.Endpoint))
	}

	return &Generator{client: anthropic.NewClient(reqOpts...), opts: opts}
}

func (g *Generator) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	if g.opts.APIKey == "" {
		return "", errors.New("ANTHROPIC_API_KEY missing")
	}
	if model == "" {
		model = g.opts.Model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(g.opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if g.opts.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.opts.Temperature))
	}
	if g.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: g.opts.System}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	logger.Debug(ctx, "Claude response received",
		"model", model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return text.String(), nil
}
