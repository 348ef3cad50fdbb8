package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"quant-agent/internal/app"
	"quant-agent/internal/export"
	"quant-agent/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	dir := flag.String("dir", "export", "directory to write <table>.csv files into")
	flag.Parse()

	if err := app.InitializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	ctx := context.Background()
	defer app.Shutdown(ctx)

	cfg, err := app.LoadConfig(ctx, *configPath)
	if err != nil {
		return 1
	}

	cs, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return 1
	}
	defer cs.Close()

	paths, err := export.All(ctx, cs, *dir)
	if err != nil {
		logger.ErrorWithErr(ctx, "Export failed", err, "dir", *dir)
		return 1
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return 0
}
