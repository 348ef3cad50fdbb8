// Package reportlog keeps a daily JSON-lines journal of generated reports.
package reportlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quant-agent/internal/interfaces"
	"quant-agent/internal/report"
	"quant-agent/internal/types"
)

const ext = ".jsonl"

type Entry struct {
	Time   string `json:"time"`
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	AsOf   string `json:"as_of"`
	Stance string `json:"stance,omitempty"`
	Body   string `json:"body"`
}

type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

var _ interfaces.ReportJournal = (*Journal)(nil)

// New journals into dir, "logs" when empty.
func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) path(t time.Time) string {
	return filepath.Join(j.dir, "reports", t.Format(types.DateLayout)+ext)
}

// Append writes r as one line of the current day's file.
func (j *Journal) Append(r types.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	e := Entry{
		Time:   now.Format("2006-01-02 15:04:05"),
		ID:     r.ID,
		Symbol: r.Symbol,
		AsOf:   r.GeneratedAt.Format(types.DateLayout),
		Stance: report.Stance(r.Body),
		Body:   r.Body,
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}

	p := j.path(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, string(b)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (j *Journal) Close() error { return nil }

// CompressOlder gzips journal files last modified more than retentionDays
// ago and removes the originals. Files it cannot read are left alone.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	root := filepath.Join(j.dir, "reports")
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
