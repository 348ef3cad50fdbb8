package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleFor(t *testing.T) {
	tests := []struct {
		name       string
		flagExpr   string
		configExpr string
		once       bool
		want       string
	}{
		{"config schedule", "", "30 21 * * 1-5", false, "30 21 * * 1-5"},
		{"flag overrides config", "0 * * * *", "30 21 * * 1-5", false, "0 * * * *"},
		{"once ignores config schedule", "", "30 21 * * 1-5", true, ""},
		{"once ignores flag", "0 * * * *", "", true, ""},
		{"nothing configured runs once", "", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scheduleFor(tt.flagExpr, tt.configExpr, tt.once))
		})
	}
}
