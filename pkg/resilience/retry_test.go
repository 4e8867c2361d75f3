package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(retryable func(error) bool) RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxJitter:      time.Millisecond,
		Retryable:      retryable,
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("first attempt success", func(t *testing.T) {
		attempts := 0
		err := Retry(ctx, fastConfig(isTransient), testLogger(), "op", func(ctx context.Context) error {
			attempts++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, attempts)
	})

	t.Run("succeeds on third attempt after two transient failures", func(t *testing.T) {
		attempts := 0
		err := Retry(ctx, fastConfig(isTransient), testLogger(), "op", func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
	})

	t.Run("never exceeds max attempts", func(t *testing.T) {
		attempts := 0
		err := Retry(ctx, fastConfig(isTransient), testLogger(), "op", func(ctx context.Context) error {
			attempts++
			return errTransient
		})
		require.ErrorIs(t, err, errTransient)
		require.Equal(t, 3, attempts)
		require.Contains(t, err.Error(), "failed after 3 attempts")
	})

	t.Run("non-retryable error fails immediately", func(t *testing.T) {
		permanent := errors.New("constraint violated")
		attempts := 0
		err := Retry(ctx, fastConfig(isTransient), testLogger(), "op", func(ctx context.Context) error {
			attempts++
			return permanent
		})
		require.ErrorIs(t, err, permanent)
		require.Equal(t, 1, attempts)
	})

	t.Run("nil predicate retries nothing", func(t *testing.T) {
		attempts := 0
		err := Retry(ctx, fastConfig(nil), testLogger(), "op", func(ctx context.Context) error {
			attempts++
			return errTransient
		})
		require.ErrorIs(t, err, errTransient)
		require.Equal(t, 1, attempts)
	})

	t.Run("cancellation aborts between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := Retry(ctx, DefaultRetryConfig(isTransient), testLogger(), "op", func(ctx context.Context) error {
			attempts++
			cancel()
			return errTransient
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, attempts)
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig(isTransient)
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	require.Equal(t, 50*time.Millisecond, cfg.MaxJitter)
	require.NotNil(t, cfg.Retryable)
}
