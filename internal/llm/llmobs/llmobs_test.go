package llmobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"quant-agent/internal/logger"
)

type fakeGen struct {
	out string
	err error
}

func (f fakeGen) Generate(ctx context.Context, model, prompt string) (string, error) {
	return f.out, f.err
}

func TestWrapLogsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.UseCore(core)
	t.Cleanup(func() { logger.UseCore(zapcore.NewNopCore()) })

	out, err := Wrap("ollama", fakeGen{out: "positive"}).Generate(context.Background(), "m", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "positive", out)
	require.Len(t, logs.FilterMessage("Generation received").All(), 1)

	_, err = Wrap("ollama", fakeGen{err: errors.New("refused")}).Generate(context.Background(), "m", "prompt")
	require.Error(t, err)
	failed := logs.FilterMessage("Generation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "ollama", failed[0].ContextMap()["provider"])
}
