package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
symbols: [" aapl", TSLA, googl, META]
history:
  start: "2024-01-01"
database:
  path: data/test.db
providers:
  polygon:
    max_calls: 5
    period_seconds: 60
  fmp:
    period: quarter
    limit: 2
llm:
  provider: OLLAMA
  model: gemma2:2b
`

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "TSLA", "GOOGL", "META"}, cfg.Symbols)
	assert.Equal(t, "https://api.polygon.io", cfg.Providers.Polygon.BaseURL)
	assert.Equal(t, time.Minute, cfg.Providers.Polygon.Period())
	assert.Equal(t, 30*time.Second, cfg.Providers.Polygon.Timeout())
	assert.Equal(t, "quarter", cfg.Providers.FMP.StatementPeriod)
	assert.Equal(t, 24*time.Hour, cfg.Providers.FMP.Period(), "quota window, not the statement period")
	assert.False(t, cfg.Providers.FMP.IncludeBalanceSheet)
	assert.Equal(t, 2, cfg.Providers.FMP.Limit)
	assert.Equal(t, 250, cfg.Providers.FMP.MaxCalls)
	assert.Equal(t, "FMP_API_KEY", cfg.Providers.FMP.APIKeyEnv)
	assert.False(t, cfg.Providers.Finviz.Enabled)
	assert.Equal(t, 12*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, "English", cfg.Report.Language)
	assert.Equal(t, 20, cfg.Sentiment.MaxHeadlines)

	start := cfg.HistoryStart(time.Now())
	assert.Equal(t, "2024-01-01", start.Format("2006-01-02"))
}

func TestHistoryStartFallback(t *testing.T) {
	cfg := &Config{}
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.AddDate(-1, 0, 0), cfg.HistoryStart(now))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no symbols", "llm:\n  provider: OLLAMA\n"},
		{"bad provider", "symbols: [AAPL]\nllm:\n  provider: MAGIC\n"},
		{"bad fmp period", "symbols: [AAPL]\nproviders:\n  fmp:\n    period: monthly\n"},
		{"negative quota", "symbols: [AAPL]\nproviders:\n  polygon:\n    max_calls: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigAndAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	t.Setenv("POLYGON_API_KEY", "secret")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Providers.Polygon.APIKey())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
