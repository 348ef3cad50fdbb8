package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"quant-agent/internal/app"
	"quant-agent/internal/logger"
	"quant-agent/internal/refresh"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	schedule := flag.String("schedule", "", "cron expression to refresh on; defaults to the config's schedule")
	once := flag.Bool("once", false, "refresh once and exit, ignoring any schedule")
	flag.Parse()

	if err := app.InitializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer app.Shutdown(context.WithoutCancel(ctx))

	cfg, err := app.LoadConfig(ctx, *configPath)
	if err != nil {
		return 1
	}

	cs, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return 1
	}
	defer cs.Close()

	ref := app.NewRefresher(ctx, cfg, cs)

	expr := scheduleFor(*schedule, cfg.Schedule, *once)
	if expr == "" {
		if err := collect(ctx, ref, cfg.Symbols); err != nil {
			return 1
		}
		return 0
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(expr, func() { _ = collect(ctx, ref, cfg.Symbols) }); err != nil {
		logger.ErrorWithErr(ctx, "Invalid schedule", err, "schedule", expr)
		return 1
	}
	c.Start()
	logger.Info(ctx, "Collector scheduled", "schedule", expr, "symbols", cfg.Symbols)

	<-ctx.Done()
	logger.Info(ctx, "Shutting down collector")
	<-c.Stop().Done()
	return 0
}

// scheduleFor picks the cron expression to run on, or "" to refresh once.
// The flag wins over the config; once wins over both.
func scheduleFor(flagExpr, configExpr string, once bool) string {
	if once {
		return ""
	}
	if flagExpr != "" {
		return flagExpr
	}
	return configExpr
}

func collect(ctx context.Context, ref *refresh.Refresher, symbols []string) error {
	op := logger.StartOperation(ctx, "collect", "symbols", len(symbols))
	err := ref.RefreshAll(op.GetContext(), symbols)
	if err != nil {
		op.EndWithError(err)
		return err
	}
	op.End()
	return nil
}
