package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProviderError is a non-2xx or malformed response from a data provider.
type ProviderError struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Reason     string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Provider, e.Endpoint, e.StatusCode)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NoDataError means a symbol has no cached data after a refresh attempt.
type NoDataError struct {
	Symbol    string
	Supported []string
	Cause     error
}

func (e *NoDataError) Error() string {
	msg := fmt.Sprintf("No data available for %s.", e.Symbol)
	if len(e.Supported) > 0 {
		msg += " Supported symbols are: " + strings.Join(e.Supported, ", ")
	}
	return msg
}

func (e *NoDataError) Unwrap() error { return e.Cause }

// TimeoutError is an externally enforced deadline expiring around a quota
// wait or an outbound call.
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s: %v", e.Op, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ErrModelUnavailable wraps every text-generation failure.
var ErrModelUnavailable = errors.New("model unavailable")
