package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quant-agent/internal/types"
)

type ProviderConfig struct {
	BaseURL       string `yaml:"base_url"`
	MaxCalls      int    `yaml:"max_calls"`
	PeriodSeconds int    `yaml:"period_seconds"`
	TimeoutSec    int    `yaml:"timeout_seconds"`
	APIKeyEnv     string `yaml:"api_key_env"`
	Enabled       bool   `yaml:"enabled"`
}

// Period returns the quota window as a duration.
func (p ProviderConfig) Period() time.Duration {
	return time.Duration(p.PeriodSeconds) * time.Second
}

// Timeout returns the HTTP timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// APIKey reads the provider's key from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

type Config struct {
	Symbols []string `yaml:"symbols"`
	History struct {
		Start string `yaml:"start"`
	} `yaml:"history"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Providers struct {
		Polygon ProviderConfig `yaml:"polygon"`
		FMP     struct {
			ProviderConfig `yaml:",inline"`

			// StatementPeriod is annual or quarter; Period() is the quota window.
			StatementPeriod     string `yaml:"period"`
			Limit               int    `yaml:"limit"`
			IncludeBalanceSheet bool   `yaml:"include_balance_sheet"`
		} `yaml:"fmp"`
		Finviz ProviderConfig `yaml:"finviz"`
	} `yaml:"providers"`
	Refresh struct {
		TTLMinutes     int `yaml:"ttl_minutes"`
		MaxAttempts    int `yaml:"max_attempts"`
		InitialWaitSec int `yaml:"initial_wait_seconds"`
		MaxWaitSec     int `yaml:"max_wait_seconds"`
		DeadlineSec    int `yaml:"deadline_seconds"`
	} `yaml:"refresh"`
	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		Endpoint    string  `yaml:"endpoint"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		TimeoutSec  int     `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Sentiment struct {
		MaxHeadlines int `yaml:"max_headlines"`
	} `yaml:"sentiment"`
	Report struct {
		Language string `yaml:"language"`
		LogDir   string `yaml:"log_dir"`
	} `yaml:"report"`
	Schedule string `yaml:"schedule"`
}

// HistoryStart parses history.start, falling back to one year before now.
func (c *Config) HistoryStart(now time.Time) time.Time {
	if t, err := time.Parse(types.DateLayout, c.History.Start); err == nil {
		return t
	}
	return now.AddDate(-1, 0, 0)
}

// RefreshTTL is how long a successful refresh stays fresh.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.Refresh.TTLMinutes) * time.Minute
}

func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("symbols cannot be empty")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Providers.Polygon.MaxCalls <= 0 || c.Providers.Polygon.PeriodSeconds <= 0 {
		return fmt.Errorf("providers.polygon quota must be positive, got %d/%ds",
			c.Providers.Polygon.MaxCalls, c.Providers.Polygon.PeriodSeconds)
	}
	if c.Providers.FMP.MaxCalls <= 0 || c.Providers.FMP.PeriodSeconds <= 0 {
		return fmt.Errorf("providers.fmp quota must be positive, got %d/%ds",
			c.Providers.FMP.MaxCalls, c.Providers.FMP.PeriodSeconds)
	}
	if sp := c.Providers.FMP.StatementPeriod; sp != "annual" && sp != "quarter" {
		return fmt.Errorf("providers.fmp.period must be 'annual' or 'quarter', got '%s'", sp)
	}
	switch c.LLM.Provider {
	case "OLLAMA", "OPENAI", "CLAUDE", "GEMINI", "NOOP":
	default:
		return fmt.Errorf("llm.provider must be OLLAMA, OPENAI, CLAUDE, GEMINI or NOOP, got '%s'", c.LLM.Provider)
	}
	return nil
}

// applyDefaults fills every optional field left empty in the file.
func (c *Config) applyDefaults() {
	for i, s := range c.Symbols {
		c.Symbols[i] = types.CanonicalSymbol(s)
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/quant_agent.db"
	}

	p := &c.Providers.Polygon
	if p.BaseURL == "" {
		p.BaseURL = "https://api.polygon.io"
	}
	if p.MaxCalls == 0 {
		p.MaxCalls = 5 // free tier
	}
	if p.PeriodSeconds == 0 {
		p.PeriodSeconds = 60
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = "POLYGON_API_KEY"
	}

	f := &c.Providers.FMP
	if f.BaseURL == "" {
		f.BaseURL = "https://financialmodelingprep.com/api/v3"
	}
	if f.MaxCalls == 0 {
		f.MaxCalls = 250
	}
	if f.PeriodSeconds == 0 {
		f.PeriodSeconds = 86400
	}
	if f.APIKeyEnv == "" {
		f.APIKeyEnv = "FMP_API_KEY"
	}
	if f.StatementPeriod == "" {
		f.StatementPeriod = "annual"
	}
	if f.Limit == 0 {
		f.Limit = 4
	}

	v := &c.Providers.Finviz
	if v.BaseURL == "" {
		v.BaseURL = "https://finviz.com"
	}
	if v.MaxCalls == 0 {
		v.MaxCalls = 1
	}
	if v.PeriodSeconds == 0 {
		v.PeriodSeconds = 5
	}

	for _, pc := range []*ProviderConfig{p, &f.ProviderConfig, v} {
		if pc.TimeoutSec == 0 {
			pc.TimeoutSec = 30
		}
	}

	if c.Refresh.TTLMinutes == 0 {
		c.Refresh.TTLMinutes = 12 * 60
	}
	if c.Refresh.MaxAttempts == 0 {
		c.Refresh.MaxAttempts = 2
	}
	if c.Refresh.InitialWaitSec == 0 {
		c.Refresh.InitialWaitSec = 1
	}
	if c.Refresh.MaxWaitSec == 0 {
		c.Refresh.MaxWaitSec = 5
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "OLLAMA"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemma2:2b"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 120
	}
	if c.Sentiment.MaxHeadlines == 0 {
		c.Sentiment.MaxHeadlines = 20
	}
	if c.Report.Language == "" {
		c.Report.Language = "English"
	}
	if c.Report.LogDir == "" {
		c.Report.LogDir = "logs"
	}
}

// ParseConfig decodes YAML, applies defaults and validates.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}
