package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds retry strategy configuration.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxJitter      time.Duration

	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries nothing: transient failures must be opted into.
	Retryable func(error) bool
}

// DefaultRetryConfig matches the persistence policy: 3 attempts,
// 100ms * 2^attempt backoff plus up to 50ms of jitter.
func DefaultRetryConfig(retryable func(error) bool) RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxJitter:      50 * time.Millisecond,
		Retryable:      retryable,
	}
}

// Retry executes fn with exponential backoff, re-attempting only errors the
// Retryable predicate accepts. Context cancellation aborts between attempts.
func Retry(ctx context.Context, cfg RetryConfig, log *slog.Logger, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if cfg.Retryable == nil || !cfg.Retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		backoff := backoffFor(attempt, cfg)
		log.Warn("operation failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("operation '%s' failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

// backoffFor returns InitialBackoff * 2^attempt plus random jitter.
func backoffFor(attempt int, cfg RetryConfig) time.Duration {
	backoff := time.Duration(float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt)))
	if cfg.MaxJitter > 0 {
		backoff += time.Duration(rand.Int63n(int64(cfg.MaxJitter)))
	}
	return backoff
}
