package clients

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// DefaultRetryConfig returns sensible defaults for upstream retries
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       60 * time.Second,
		JitterFraction: 0.1,
	}
}

// Delay computes the randomized exponential backoff for an attempt:
// min(base * 2^attempt, max) plus uniform jitter in ±jitterFraction of the
// capped delay. The jittered result never exceeds max*(1+jitterFraction).
func Delay(attempt int, base, max time.Duration, jitterFraction float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > max || delay <= 0 {
		delay = max
	}
	if jitterFraction > 0 {
		jitter := time.Duration(float64(delay) * jitterFraction * (2*rand.Float64() - 1))
		delay += jitter
	}
	return delay
}

// DoWithRetry runs op up to MaxAttempts times, sleeping Delay(attempt)
// between failures. Non-retryable errors (auth failures, breaker rejections)
// are surfaced immediately; the last error is returned when attempts are
// exhausted. Context cancellation interrupts the backoff sleep.
func DoWithRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(Delay(attempt-1, cfg.BaseDelay, cfg.MaxDelay, cfg.JitterFraction)):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
