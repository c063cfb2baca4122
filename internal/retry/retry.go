// Package retry provides a bounded retry combinator with fixed or
// exponential delay, shared by the embedding orchestrator (batch calls) and
// the service supervisor (health probes).
package retry

import (
	"context"
	"time"
)

// Config controls attempt count and backoff behavior.
type Config struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap for exponential growth
	Multiplier  float64       // 1.0 gives a fixed interval
}

// Fixed returns a config that retries on a constant interval, as used for
// health-check polling.
func Fixed(attempts int, interval time.Duration) Config {
	return Config{
		MaxAttempts: attempts,
		BaseDelay:   interval,
		MaxDelay:    interval,
		Multiplier:  1.0,
	}
}

// Exponential returns a config with exponential backoff, as used for
// network calls to the embedding service.
func Exponential(attempts int, base, max time.Duration) Config {
	return Config{
		MaxAttempts: attempts,
		BaseDelay:   base,
		MaxDelay:    max,
		Multiplier:  2.0,
	}
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between attempts.
// It returns the first successful result, or the last error once attempts
// are exhausted. Context cancellation stops retrying immediately.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	delay := cfg.BaseDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * cfg.Multiplier)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
