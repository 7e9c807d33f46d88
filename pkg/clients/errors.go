package clients

import (
	"errors"
	"fmt"
	"time"
)

// ErrBreakerOpen is returned when the circuit breaker rejects a call without
// attempting it. It is reported immediately and never retried internally;
// the caller decides whether to fall back.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// AuthError is a fatal credential rejection. Never retried; aborts the
// enclosing request.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// RateLimitedError reports quota exhaustion, either locally or via an
// upstream 429. Retryable after the indicated reset; counts as a breaker
// failure.
type RateLimitedError struct {
	ResetIn time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, resets in %s", e.ResetIn.Round(time.Second))
}

// UnavailableError covers network failures, timeouts and upstream 5xx.
// Retryable transient; counts as a breaker failure.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("upstream unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// IsRetryable reports whether an error belongs to a transient class. Auth
// failures and breaker rejections are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	if errors.Is(err, ErrBreakerOpen) {
		return false
	}
	return true
}

// IsBreakerFailure reports whether an error should be recorded as a circuit
// breaker failure. Rate limits and unavailability count; auth failures and
// the breaker's own rejection do not.
func IsBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitedError
	var ua *UnavailableError
	return errors.As(err, &rl) || errors.As(err, &ua)
}
