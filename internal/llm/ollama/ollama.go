// Package ollama talks to a local Ollama server through its chat endpoint.
package ollama

import (
	"context"
	"errors"

	"quant-agent/internal/api"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/llm"
	"quant-agent/internal/trace"
)

const DefaultEndpoint = "http://localhost:11434"

var _ interfaces.Generator = (*Generator)(nil)

type Generator struct {
	http *api.Client
	opts llm.Options
}

func New(opts llm.Options, clientOpts ...api.ClientOption) *Generator {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	clientOpts = append([]api.ClientOption{api.WithBaseURL(opts.Endpoint)}, clientOpts...)
	return &Generator{
		http: api.NewClient("ollama", clientOpts...),
		opts: opts,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message message `json:"message"`
	Error   string  `json:"error"`
}

// Generate sends a single non-streaming chat turn. An empty model falls back
// to the configured one.
func (g *Generator) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "ollama.Generate")
	defer span.End()

	if model == "" {
		model = g.opts.Model
	}

	msgs := make([]message, 0, 2)
	if g.opts.System != "" {
		msgs = append(msgs, message{Role: "system", Content: g.opts.System})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})

	options := map[string]any{}
	if g.opts.Temperature > 0 {
		options["temperature"] = g.opts.Temperature
	}
	if g.opts.MaxTokens > 0 {
		options["num_predict"] = g.opts.MaxTokens
	}

	resp, err := g.http.POST(ctx, "/api/chat", chatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := resp.ParseJSON("ollama", "/api/chat", &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	return out.Message.Content, nil
}
