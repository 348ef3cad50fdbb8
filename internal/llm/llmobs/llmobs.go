package llmobs

import (
	"context"
	"time"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/trace"
)

// observableGenerator wraps a Generator with observability (logging & tracing)
type observableGenerator struct {
	provider  string
	generator interfaces.Generator
}

// Compile-time interface check
var _ interfaces.Generator = (*observableGenerator)(nil)

// Wrap wraps a generator with observability middleware
func Wrap(provider string, generator interfaces.Generator) interfaces.Generator {
	return &observableGenerator{
		provider:  provider,
		generator: generator,
	}
}

// Generate produces text with observability
func (og *observableGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Generate")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting generation",
		"provider", og.provider,
		"model", model,
		"prompt_len", len(prompt),
	)

	start := time.Now()
	text, err := og.generator.Generate(ctx, model, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Generation failed", err,
			"provider", og.provider,
			"model", model,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Generation received",
		"provider", og.provider,
		"model", model,
		"response_len", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return text, nil
}
