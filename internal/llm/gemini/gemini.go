// Package gemini generates text with the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/llm"
	"quant-agent/internal/trace"
)

const DefaultModel = "gemini-2.0-flash"

var _ interfaces.Generator = (*Generator)(nil)

// Generator creates its client on first use since the SDK needs a context.
type Generator struct {
	opts llm.Options

	once    sync.Once
	client  *genai.Client
	initErr error
}

// New reads GEMINI_API_KEY when opts carries no key.
func New(opts llm.Options) *Generator {
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Generator{opts: opts}
}

func (g *Generator) init(ctx context.Context) error {
	g.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:  g.opts.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if g.opts.Endpoint != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.opts.Endpoint}
		}
		g.client, g.initErr = genai.NewClient(ctx, cfg)
	})
	return g.initErr
}

func (g *Generator) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-api-call")
	defer span.End()

	if g.opts.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY missing")
	}
	if err := g.init(ctx); err != nil {
		return "", err
	}
	if model == "" {
		model = g.opts.Model
	}

	config := &genai.GenerateContentConfig{}
	if g.opts.Temperature > 0 {
		config.Temperature = genai.Ptr(g.opts.Temperature)
	}
	if g.opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(g.opts.MaxTokens)
	}
	if g.opts.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(g.opts.System)}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	return textOf(resp)
}

// textOf joins the text parts of the first candidate.
func textOf(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
