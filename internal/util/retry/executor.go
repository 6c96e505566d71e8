package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Options configures a call to [Execute].
type Options struct {
	// Attempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	Attempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// CleanupOnFailure runs after each failed attempt before the next one.
	// Its own failure is only logged, never escalated.
	CleanupOnFailure func(ctx context.Context) error

	// Critical controls exhaustion behavior. A critical operation returns
	// the last error once attempts are exhausted; a non-critical one logs
	// a warning and returns the zero value.
	Critical bool

	// SuppressLog silences per-attempt failure logging.
	SuppressLog bool

	// Log is the message sink. Nil falls back to the standard logger.
	Log func(format string, v ...any)
}

// Execute runs op until it succeeds or Attempts are exhausted, pausing Delay
// between attempts. Context cancellation aborts the wait between attempts
// and is always returned as an error regardless of criticality.
func Execute[T any](ctx context.Context, name string, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T

	logf := opts.Log
	if logf == nil {
		logf = log.Printf
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !opts.SuppressLog {
			logf("[Retry] %s: attempt %d/%d failed: %v", name, attempt, attempts, err)
		}

		if opts.CleanupOnFailure != nil {
			if cleanupErr := opts.CleanupOnFailure(ctx); cleanupErr != nil {
				logf("[Retry] %s: cleanup after failed attempt also failed: %v", name, cleanupErr)
			}
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s cancelled after %d attempts: %w", name, attempt, ctx.Err())
		case <-time.After(opts.Delay):
		}
	}

	if opts.Critical {
		return zero, fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
	}

	logf("[Retry] Warning: %s failed after %d attempts, continuing without it: %v", name, attempts, lastErr)
	return zero, nil
}
