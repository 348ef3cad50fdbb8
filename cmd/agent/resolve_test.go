package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSymbol(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"analyze apple for me", "AAPL"},
		{"애플 분석해줘", "AAPL"},
		{"What about the new iPhone?", "AAPL"},
		{"테슬라 분석해줘", "TSLA"},
		{"Elon Musk", "TSLA"},
		{"YouTube owner", "GOOGL"},
		{"instagram", "META"},
		{"  nvda ", "NVDA"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSymbol(tt.input))
		})
	}
}
