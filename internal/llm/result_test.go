package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"quant-agent/internal/types"
)

type stubGen struct {
	text string
	err  error
	boom bool
}

func (s stubGen) Generate(ctx context.Context, model, prompt string) (string, error) {
	if s.boom {
		panic("kaboom")
	}
	return s.text, s.err
}

func TestCall(t *testing.T) {
	ctx := context.Background()

	ok := Call(ctx, stubGen{text: "  positive \n"}, "m", "p")
	assert.True(t, ok.OK())
	assert.Equal(t, "positive", ok.OrElse("fallback"))

	tests := []struct {
		name string
		gen  stubGen
	}{
		{"error", stubGen{err: errors.New("connection refused")}},
		{"blank", stubGen{text: "   "}},
		{"panic", stubGen{boom: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Call(ctx, tt.gen, "m", "p")
			assert.False(t, r.OK())
			assert.ErrorIs(t, r.Err, types.ErrModelUnavailable)
			assert.Equal(t, "fallback", r.OrElse("fallback"))
		})
	}

	r := Call(ctx, nil, "m", "p")
	assert.ErrorIs(t, r.Err, types.ErrModelUnavailable)
}
