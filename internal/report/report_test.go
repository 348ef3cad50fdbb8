package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quant-agent/internal/llm/noop"
	"quant-agent/internal/types"
)

type fakeGen struct {
	out    string
	err    error
	prompt string
}

func (f *fakeGen) Generate(ctx context.Context, model, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

var asOf = time.Date(2026, 3, 10, 15, 4, 0, 0, time.UTC)

func TestPromptIsDeterministic(t *testing.T) {
	s := New(nil, "m", "")
	a := s.Prompt("AAPL", "tech", "senti", "fund", asOf)
	b := s.Prompt("AAPL", "tech", "senti", "fund", asOf)
	assert.Equal(t, a, b)

	assert.Contains(t, a, "2026-03-10")
	assert.Contains(t, a, "Senior Quant Analyst")
	assert.Contains(t, a, "Language: English")
	assert.Contains(t, a, "data unavailable")
	assert.Contains(t, a, "BUY, SELL or HOLD")
	for _, part := range []string{"tech", "senti", "fund"} {
		assert.Contains(t, a, part)
	}
}

func TestGenerateReport(t *testing.T) {
	gen := &fakeGen{out: "Report date: 2026-03-10\n...\nHOLD"}
	body := New(gen, "m", "Korean").GenerateReport(context.Background(), "AAPL", "t", "s", "f", asOf)

	assert.Equal(t, "Report date: 2026-03-10\n...\nHOLD", body)
	assert.Contains(t, gen.prompt, "Language: Korean")
}

func TestGenerateReportAddsMissingDate(t *testing.T) {
	gen := &fakeGen{out: noop.Text}
	body := New(gen, "m", "").GenerateReport(context.Background(), "AAPL", "t", "s", "f", asOf)

	assert.Equal(t, "Report date: 2026-03-10\n"+noop.Text, body)
	assert.Equal(t, StanceHold, Stance(body))
}

func TestGenerateReportPlaceholder(t *testing.T) {
	gen := &fakeGen{err: errors.New("dial tcp: connection refused")}
	body := New(gen, "m", "").GenerateReport(context.Background(), "AAPL", "t", "s", "f", asOf)

	assert.True(t, strings.HasPrefix(body, PlaceholderPrefix))
	assert.Contains(t, body, "connection refused")
	assert.Contains(t, body, types.ErrModelUnavailable.Error())
}

func TestStance(t *testing.T) {
	assert.Equal(t, StanceHold, Stance("Buyers are cautious.\nPosition: HOLD"))
	assert.Equal(t, StanceSell, Stance("we switched from BUY to sell"))
	assert.Equal(t, "", Stance("no markers here, buyback aside"))
}
