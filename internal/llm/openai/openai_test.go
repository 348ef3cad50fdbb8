package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-agent/internal/llm"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Final stance: HOLD"}}]}`))
	}))
	defer srv.Close()

	g := New(llm.Options{Model: "gpt-4o-mini", Endpoint: srv.URL, APIKey: "sk-test"})
	out, err := g.Generate(context.Background(), "", "write")
	require.NoError(t, err)
	assert.Equal(t, "Final stance: HOLD", out)
}

func TestGenerateWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(llm.Options{Endpoint: "http://127.0.0.1:0"}).Generate(context.Background(), "m", "p")
	assert.EqualError(t, err, "OPENAI_API_KEY missing")
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(llm.Options{Endpoint: srv.URL, APIKey: "k"}).Generate(context.Background(), "m", "p")
	assert.EqualError(t, err, "no choices")
}
