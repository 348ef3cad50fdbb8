package noop

import (
	"context"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
)

// Text is what the noop generator always answers.
const Text = "No language model is configured, so no narrative was generated. Final stance: HOLD"

var _ interfaces.Generator = (*Generator)(nil)

// Generator is a fallback used when no model provider is configured
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

// Generate always returns Text
func (g *Generator) Generate(ctx context.Context, model, prompt string) (string, error) {
	logger.Debug(ctx, "Noop generator called - always returns HOLD", "model", model, "prompt_len", len(prompt))
	return Text, nil
}
