// Package resilience implements the retry executor and circuit breaker that
// the client service composes around provider calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/bkyoung/llmclient/llm"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	Multiplier        float64
	Jitter            float64 // fraction of the delay, in [0, 1]
	RetryableStatuses map[int]bool
}

// DefaultRetryConfig returns the module default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		RetryableStatuses: map[int]bool{
			408: true,
			429: true,
			500: true,
			502: true,
			503: true,
			504: true,
		},
	}
}

// Backoff calculates the wait time before the retry following attempt
// (0-indexed). Formula: min(initial * multiplier^attempt, maxBackoff) with
// symmetric jitter of ±(jitter * delay / 2), floored at zero.
func Backoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialBackoff) * math.Pow(config.Multiplier, float64(attempt))

	if delay > float64(config.MaxBackoff) {
		delay = float64(config.MaxBackoff)
	}

	jitterRange := config.Jitter * delay / 2
	delay += (rand.Float64() * 2 * jitterRange) - jitterRange

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Retryable determines whether an error should be retried under the given
// configuration. Errors raised inside this module carry an explicit retryable
// flag and status code; string sniffing is a fallback only for errors
// originating outside our control.
func Retryable(err error, config RetryConfig) bool {
	if err == nil {
		return false
	}

	var lerr *llm.Error
	if errors.As(err, &lerr) {
		if !lerr.Retryable {
			return false
		}
		// Timeout and transport errors carry no status code.
		if lerr.StatusCode == 0 {
			return true
		}
		return config.RetryableStatuses[lerr.StatusCode]
	}

	return isTransportFailure(err)
}

// isTransportFailure classifies foreign errors by their text.
func isTransportFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network",
		"eof",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Operation is a function that can be retried.
type Operation func(ctx context.Context) error

// RetryCallback is invoked before each backoff sleep with the 1-based number
// of the attempt that just failed.
type RetryCallback func(attempt int, err error)

// WithRetry executes an operation with exponential backoff retry logic.
// Attempts run strictly sequentially: 0..MaxRetries inclusive. The first
// non-retryable error is returned immediately; when the budget is exhausted
// the last failure is wrapped in an error stating the total attempt count.
func WithRetry(ctx context.Context, operation Operation, config RetryConfig, onRetry RetryCallback) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !Retryable(err, config) {
			return err
		}

		if attempt >= config.MaxRetries {
			break
		}

		backoff := Backoff(attempt, config)

		if onRetry != nil {
			onRetry(attempt+1, err)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return exhausted(lastErr, config.MaxRetries+1)
}

// exhausted wraps the last failure once the retry budget is spent, preserving
// the original kind, provider and status for callers that match on them.
func exhausted(lastErr error, attempts int) error {
	wrapped := &llm.Error{
		Kind:      llm.KindProvider,
		Message:   fmt.Sprintf("request failed after %d attempts: %v", attempts, lastErr),
		Retryable: false,
		Cause:     lastErr,
	}

	var lerr *llm.Error
	if errors.As(lastErr, &lerr) {
		wrapped.Kind = lerr.Kind
		wrapped.Provider = lerr.Provider
		wrapped.StatusCode = lerr.StatusCode
	}
	return wrapped
}
