package pipelineobs

import (
	"context"
	"time"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/report"
	"quant-agent/internal/trace"
	"quant-agent/internal/types"
)

type observableAgent struct {
	agent interfaces.Agent
}

var _ interfaces.Agent = (*observableAgent)(nil)

func Wrap(agent interfaces.Agent) interfaces.Agent {
	return &observableAgent{
		agent: agent,
	}
}

func (oa *observableAgent) Analyze(ctx context.Context, symbol string) (types.Report, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline.Analyze", trace.WithSymbol(symbol))
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting analysis",
		"symbol", symbol,
	)

	rep, err := oa.agent.Analyze(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Analysis failed", err,
			"symbol", symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return rep, err
	}

	logger.ReportGenerated(ctx, rep.Symbol, rep.ID, report.Stance(rep.Body),
		"as_of", rep.GeneratedAt.Format(types.DateLayout),
		"body_len", len(rep.Body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return rep, nil
}
