// Package retry provides a generic backoff wrapper for operations that
// may fail transiently.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultConfig mirrors the historical scan defaults: five attempts
// starting at a one second delay, doubling each time.
func DefaultConfig() Config {
	return Config{MaxAttempts: 5, InitialDelay: time.Second}
}

// Do runs op, retrying with exponentially increasing delay while
// retryable reports the failure as transient. Any other failure
// propagates immediately. Exhausting the budget returns the final
// error annotated as persistent.
func Do[T any](ctx context.Context, cfg Config, retryable func(error) bool, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return zero, fmt.Errorf("persisted after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
