// Package app wires configuration into the components shared by the
// command-line front ends.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"quant-agent/internal/analysis"
	"quant-agent/internal/api"
	"quant-agent/internal/cache"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/llm"
	"quant-agent/internal/llm/claude"
	"quant-agent/internal/llm/gemini"
	"quant-agent/internal/llm/llmobs"
	"quant-agent/internal/llm/noop"
	"quant-agent/internal/llm/ollama"
	"quant-agent/internal/llm/openai"
	"quant-agent/internal/logger"
	"quant-agent/internal/pipeline"
	"quant-agent/internal/pipeline/pipelineobs"
	"quant-agent/internal/provider/finviz"
	"quant-agent/internal/provider/fmp"
	"quant-agent/internal/provider/polygon"
	"quant-agent/internal/quota"
	"quant-agent/internal/refresh"
	"quant-agent/internal/report"
	"quant-agent/internal/store"
	"quant-agent/internal/trace"
)

// InitializeSystem loads .env and starts the logger and tracer
func InitializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// Shutdown flushes the tracer and the logger
func Shutdown(ctx context.Context) {
	if err := trace.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shut down tracer: %v\n", err)
	}
	logger.Sync()
}

func LoadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func OpenStore(ctx context.Context, cfg *store.Config) (*cache.Store, error) {
	s, err := cache.Open(cfg.Database.Path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open cache", err, "path", cfg.Database.Path)
		return nil, err
	}
	return s, nil
}

// gates holds one quota gate per provider, each sized from its own section.
type gates struct {
	polygon *quota.Gate
	fmp     *quota.Gate
	finviz  *quota.Gate
}

func newGates(cfg *store.Config) gates {
	p := cfg.Providers
	return gates{
		polygon: quota.NewGate(polygon.ProviderName, p.Polygon.MaxCalls, p.Polygon.Period()),
		fmp:     quota.NewGate(fmp.ProviderName, p.FMP.MaxCalls, p.FMP.ProviderConfig.Period()),
		finviz:  quota.NewGate(finviz.ProviderName, p.Finviz.MaxCalls, p.Finviz.Period()),
	}
}

// NewRefresher builds the fetchers behind their provider gates.
func NewRefresher(ctx context.Context, cfg *store.Config, cs interfaces.CacheStore) *refresh.Refresher {
	g := newGates(cfg)

	pc := cfg.Providers.Polygon
	poly := polygon.New(pc.BaseURL, pc.APIKey(), g.polygon, api.WithTimeout(pc.Timeout()))
	if pc.APIKey() == "" {
		logger.Warn(ctx, "Polygon API key missing, price and news refresh will fail", "env", pc.APIKeyEnv)
	}

	fc := cfg.Providers.FMP
	fin := fmp.New(fc.BaseURL, fc.APIKey(), g.fmp, fmp.Options{
		Period:              fc.StatementPeriod,
		Limit:               fc.Limit,
		IncludeBalanceSheet: fc.IncludeBalanceSheet,
	}, api.WithTimeout(fc.Timeout()))
	if fc.APIKey() == "" {
		logger.Warn(ctx, "FMP API key missing, financials refresh will fail", "env", fc.APIKeyEnv)
	}

	rc := refresh.Config{
		TTL:          cfg.RefreshTTL(),
		HistoryStart: cfg.HistoryStart(time.Now()),
		Retry: &api.RetryConfig{
			MaxAttempts: cfg.Refresh.MaxAttempts,
			InitialWait: time.Duration(cfg.Refresh.InitialWaitSec) * time.Second,
			MaxWait:     time.Duration(cfg.Refresh.MaxWaitSec) * time.Second,
		},
		Deadline: time.Duration(cfg.Refresh.DeadlineSec) * time.Second,
	}

	var opts []refresh.Option
	if vc := cfg.Providers.Finviz; vc.Enabled {
		opts = append(opts, refresh.WithFallbackNews(finviz.New(vc.BaseURL, g.finviz, vc.Timeout())))
		logger.Info(ctx, "Finviz headline fallback enabled")
	}

	return refresh.New(cs, poly, poly, fin, rc, opts...)
}

// NewGenerator selects the text generator and wraps it with observability
func NewGenerator(ctx context.Context, cfg *store.Config) interfaces.Generator {
	opts := llm.Options{
		Model:       cfg.LLM.Model,
		Endpoint:    cfg.LLM.Endpoint,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	timeout := api.WithTimeout(time.Duration(cfg.LLM.TimeoutSec) * time.Second)

	var gen interfaces.Generator
	switch cfg.LLM.Provider {
	case "OLLAMA":
		gen = ollama.New(opts, timeout)
	case "OPENAI":
		gen = openai.New(opts, timeout)
	case "CLAUDE":
		gen = claude.New(opts)
	case "GEMINI":
		gen = gemini.New(opts)
	default:
		gen = noop.New()
		logger.Warn(ctx, "No LLM provider configured - reports carry a fixed HOLD narrative")
	}

	return llmobs.Wrap(cfg.LLM.Provider, gen)
}

// NewAgent assembles the analysis pipeline with observability
func NewAgent(cfg *store.Config, cs interfaces.CacheStore, ref interfaces.Refresher, gen interfaces.Generator) interfaces.Agent {
	sentiment := analysis.NewSentiment(gen, cfg.LLM.Model, cfg.Report.Language, cfg.Sentiment.MaxHeadlines)
	synth := report.New(gen, cfg.LLM.Model, cfg.Report.Language)
	p := pipeline.New(cs, ref, sentiment, synth, pipeline.WithSupported(cfg.Symbols))
	return pipelineobs.Wrap(p)
}
