package clients

import (
	"time"

	"golang.org/x/time/rate"
)

// Quota gates upstream requests to a fixed budget per trailing window,
// independent of the circuit breaker. Exhaustion is reported as a
// RateLimitedError with a reset estimate instead of blocking the caller.
type Quota struct {
	limiter *rate.Limiter
}

// NewQuota creates a quota of n requests per window (e.g. 1500 per 15
// minutes), with the full budget available as burst.
func NewQuota(n int, window time.Duration) *Quota {
	if n <= 0 {
		n = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Quota{
		limiter: rate.NewLimiter(rate.Limit(float64(n)/window.Seconds()), n),
	}
}

// Acquire consumes one request from the budget. When the budget is exhausted
// it returns a RateLimitedError carrying the estimated wait until the next
// slot frees up.
func (q *Quota) Acquire() error {
	r := q.limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return &RateLimitedError{ResetIn: delay}
	}
	return nil
}
