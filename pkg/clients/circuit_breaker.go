package clients

import (
	"sync"
	"time"

	"github.com/gamepop/fin-x-watcher/pkg/logging"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker
type CircuitBreakerConfig struct {
	Name             string        // identifies the breaker in logs
	FailureThreshold int           // consecutive failures before opening
	RecoveryTimeout  time.Duration // time to wait in open before probing
	HalfOpenMaxCalls int           // probe budget; successes needed to close
	Logger           logging.Logger
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker is a tri-state failure gate guarding upstream calls.
// Success and failure can be recorded from overlapping in-flight requests,
// so every state mutation happens inside one critical section.
type CircuitBreaker struct {
	mu                sync.Mutex
	state             CircuitBreakerState
	failureCount      int
	lastFailureTime   time.Time
	halfOpenProbes    int // probe calls admitted in the current half-open window
	halfOpenSuccesses int
	failureThreshold  int
	recoveryTimeout   time.Duration
	halfOpenMaxCalls  int
	name              string
	logger            logging.Logger
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 3
	}
	if config.Name == "" {
		config.Name = "circuit-breaker"
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: config.FailureThreshold,
		recoveryTimeout:  config.RecoveryTimeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		name:             config.Name,
		logger:           config.Logger,
	}
}

// CanExecute reports whether a call may proceed. When the breaker is open and
// the recovery timeout has elapsed it transitions to half-open and admits a
// bounded number of probes.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenProbes = 1
			cb.halfOpenSuccesses = 0
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenProbes < cb.halfOpenMaxCalls {
			cb.halfOpenProbes++
			return true
		}
		return false
	}
	return false
}

// RecordSuccess records a successful call. In half-open it counts toward the
// close threshold; in closed it resets the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.halfOpenMaxCalls {
			cb.transition(StateClosed)
			cb.failureCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// RecordFailure records a failed call. Any half-open failure reopens the
// breaker; in closed it opens once the failure threshold is crossed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateOpen)
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.logger != nil {
		cb.logger.WithFields(logging.Fields{
			"circuit_breaker": cb.name,
			"from_state":      from.String(),
			"to_state":        to.String(),
			"failure_count":   cb.failureCount,
		}).Warn("Circuit breaker state change")
	}
}

// Call executes fn through the breaker. When the breaker rejects the call it
// returns ErrBreakerOpen without invoking fn. Only breaker-countable errors
// (rate limits, unavailability) are recorded as failures.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.CanExecute() {
		return ErrBreakerOpen
	}

	err := fn()
	if err == nil {
		cb.RecordSuccess()
		return nil
	}
	if IsBreakerFailure(err) {
		cb.RecordFailure()
	}
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns current statistics for the status surface
func (cb *CircuitBreaker) Stats() (CircuitBreakerState, int, time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.lastFailureTime
}
