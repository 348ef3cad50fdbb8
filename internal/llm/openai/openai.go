// Package openai generates text with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"os"

	"quant-agent/internal/api"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/llm"
	"quant-agent/internal/trace"
)

const DefaultEndpoint = "https://api.openai.com/v1"

var _ interfaces.Generator = (*Generator)(nil)

type Generator struct {
	http *api.Client
	opts llm.Options
}

// New reads OPENAI_API_KEY when opts carries no key.
func New(opts llm.Options, clientOpts ...api.ClientOption) *Generator {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	clientOpts = append([]api.ClientOption{
		api.WithBaseURL(opts.Endpoint),
		api.WithHeader("Authorization", "Bearer "+opts.APIKey),
	}, clientOpts...)
	return &Generator{http: api.NewClient("openai", clientOpts...), opts: opts}
}

func (g *Generator) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	if g.opts.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY missing")
	}
	if model == "" {
		model = g.opts.Model
	}

	messages := []map[string]string{}
	if g.opts.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": g.opts.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if g.opts.Temperature > 0 {
		body["temperature"] = g.opts.Temperature
	}
	if g.opts.MaxTokens > 0 {
		body["max_tokens"] = g.opts.MaxTokens
	}

	resp, err := g.http.POST(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := resp.ParseJSON("openai", "/chat/completions", &r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return r.Choices[0].Message.Content, nil
}
