package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy. A MaxAttempts of
// zero or less retries until the context is cancelled.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *Logger
}

// Do executes fn with exponential back-off until it succeeds, the attempts
// run out or ctx is cancelled.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	var lastErr error
	delay := r.BaseDelay
	limited := r.MaxAttempts > 0

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s cancelled after %d attempts: %w (last error: %v)", operationName, attempt-1, err, lastErr)
			}
			return fmt.Errorf("%s cancelled: %w", operationName, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if limited && attempt >= r.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempt, lastErr)
		}

		if r.Logger != nil {
			of := "unlimited"
			if limited {
				of = fmt.Sprint(r.MaxAttempts)
			}
			r.Logger.Warn("[retry] %s failed (attempt %d/%s): %v, retrying in %v",
				operationName, attempt, of, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}

		delay *= 2
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
}
