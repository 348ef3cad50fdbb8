package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-agent/internal/llm"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma2:2b", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"neutral"},"done":true}`))
	}))
	defer srv.Close()

	g := New(llm.Options{Model: "gemma2:2b", Endpoint: srv.URL})
	out, err := g.Generate(context.Background(), "", "classify")
	require.NoError(t, err)
	assert.Equal(t, "neutral", out)
}

func TestGenerateModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer srv.Close()

	_, err := New(llm.Options{Endpoint: srv.URL}).Generate(context.Background(), "x", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
