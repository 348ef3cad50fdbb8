package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"quant-agent/internal/app"
	"quant-agent/internal/interfaces"
	"quant-agent/internal/logger"
	"quant-agent/internal/reportlog"
	"quant-agent/internal/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	query := flag.String("q", "", "analyse this query once instead of prompting")
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

	journal := reportlog.New(cfg.Report.LogDir)
	defer journal.Close()
	compressOldReports(ctx, journal)

	gen := app.NewGenerator(ctx, cfg)
	agent := app.NewAgent(cfg, cs, app.NewRefresher(ctx, cfg, cs), gen)

	if *query != "" {
		if !answer(ctx, agent, journal, *query) {
			return 1
		}
		return 0
	}

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nWhich company should I analyse? ")
		if !in.Scan() || ctx.Err() != nil {
			fmt.Println()
			return 0
		}
		line := strings.TrimSpace(in.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return 0
		}
		answer(ctx, agent, journal, line)
	}
}

// answer prints the report for one query and reports whether one was made.
func answer(ctx context.Context, agent interfaces.Agent, journal interfaces.ReportJournal, query string) bool {
	symbol := resolveSymbol(query)
	fmt.Printf("Analysing %s...\n", symbol)

	rep, err := agent.Analyze(ctx, symbol)
	if err != nil {
		var nd *types.NoDataError
		if errors.As(err, &nd) {
			fmt.Println(nd.Error())
		} else {
			fmt.Printf("Analysis failed: %v\n", err)
		}
		return false
	}

	rule := strings.Repeat("=", 60)
	fmt.Println(rule)
	fmt.Printf("%s investment report (%s)\n", rep.Symbol, rep.GeneratedAt.Format(types.DateLayout))
	fmt.Println(rule)
	fmt.Println(rep.Body)
	fmt.Println(rule)

	if err := journal.Append(rep); err != nil {
		logger.Warn(ctx, "Failed to journal report", "report_id", rep.ID, "error", err)
	}
	return true
}

// compressOldReports gzips old journal files when REPORT_LOG_RETENTION_DAYS is set
func compressOldReports(ctx context.Context, j *reportlog.Journal) {
	v := os.Getenv("REPORT_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid REPORT_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := j.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old reports", "error", err)
	}
}
