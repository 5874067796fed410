package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("database is locked")

func alwaysRetryable(error) bool { return true }

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond}
	attempts := 0
	out, err := Do(context.Background(), cfg, alwaysRetryable, func(context.Context) (string, error) {
		attempts++
		if attempts < 5 {
			return "", errTransient
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 5, attempts)
}

func TestDoExhaustsBudget(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond}
	attempts := 0
	_, err := Do(context.Background(), cfg, alwaysRetryable, func(context.Context) (int, error) {
		attempts++
		return 0, errTransient
	})
	require.Error(t, err)
	require.ErrorIs(t, err, errTransient)
	require.Contains(t, err.Error(), "persisted after 5 attempts")
	require.Equal(t, 5, attempts)
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	permanent := errors.New("unauthorized")
	attempts := 0
	_, err := Do(context.Background(), DefaultConfig(),
		func(err error) bool { return errors.Is(err, errTransient) },
		func(context.Context) (int, error) {
			attempts++
			return 0, permanent
		})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, attempts)
}

func TestDoDoublesDelay(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxAttempts: 4, InitialDelay: 10 * time.Millisecond}
	var stamps []time.Time
	_, err := Do(context.Background(), cfg, alwaysRetryable, func(context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, errTransient
	})
	require.Error(t, err)
	require.Len(t, stamps, 4)

	// Waits of 10, 20, 40ms between the four attempts.
	require.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 10*time.Millisecond)
	require.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 20*time.Millisecond)
	require.GreaterOrEqual(t, stamps[3].Sub(stamps[2]), 40*time.Millisecond)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Minute}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, alwaysRetryable, func(context.Context) (int, error) {
			return 0, errTransient
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestDoSanitizesConfig(t *testing.T) {
	t.Parallel()

	attempts := 0
	out, err := Do(context.Background(), Config{}, alwaysRetryable, func(context.Context) (int, error) {
		attempts++
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, out)
	require.Equal(t, 1, attempts)
}
