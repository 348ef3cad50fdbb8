// Package export writes cache tables to CSV files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"quant-agent/internal/logger"
)

// Dumper is the read side of the cache store used for export.
type Dumper interface {
	Tables() []string
	Dump(ctx context.Context, table string) ([]string, [][]string, error)
}

// All writes every table to dir/<table>.csv and returns the paths written.
// It stops at the first failure.
func All(ctx context.Context, d Dumper, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, table := range d.Tables() {
		p, n, err := Table(ctx, d, table, dir)
		if err != nil {
			return paths, err
		}
		logger.Info(ctx, "Exported table", "table", table, "rows", n, "path", p)
		paths = append(paths, p)
	}
	return paths, nil
}

// Table writes one table, header first, and returns its path and row count.
func Table(ctx context.Context, d Dumper, table, dir string) (string, int, error) {
	cols, rows, err := d.Dump(ctx, table)
	if err != nil {
		return "", 0, fmt.Errorf("dump %s: %w", table, err)
	}

	outPath := filepath.Join(dir, table+".csv")
	out, err := os.Create(outPath)
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(cols); err != nil {
		return "", 0, err
	}
	if err := w.WriteAll(rows); err != nil {
		return "", 0, fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, len(rows), out.Close()
}
