// Package resilience provides process-local failure containment: a keyed
// circuit breaker and a timeout wrapper. Breaker state is per process; in a
// multi-instance deployment each instance trips independently.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed allows all requests through
	StateClosed State = iota
	// StateOpen blocks all requests until the cool-down elapses
	StateOpen
	// StateHalfOpen allows probe requests through to test recovery
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
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

// ErrCircuitBreakerOpen is returned when the circuit breaker is open.
// Rejections actually carry an *OpenError; errors.Is against this sentinel
// still matches.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// OpenError is the rejection returned while the circuit is open. RetryAfter
// is the remaining cool-down at the moment of rejection.
type OpenError struct {
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open, retry after %s", e.RetryAfter)
}

// Is matches the ErrCircuitBreakerOpen sentinel.
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitBreakerOpen
}

// CircuitBreaker implements the circuit breaker pattern to prevent hammering
// a failing dependency. Consecutive failures up to the threshold open the
// circuit; after the cool-down the next call is let through as a probe, and
// a probe success closes the circuit again.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time

	// onStateChange is set by BreakerGroup for metrics.
	onStateChange func(from, to State)
}

// NewCircuitBreaker creates a closed circuit breaker that opens after
// threshold consecutive failures and probes again after cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
	}
}

// Execute runs fn if the circuit allows it. While open it returns an
// *OpenError without invoking fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()
	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

// allow decides whether a call may proceed, transitioning Open to HalfOpen
// once the cool-down has elapsed.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		remaining := cb.cooldown - time.Since(cb.openedAt)
		if remaining > 0 {
			return &OpenError{RetryAfter: remaining}
		}
		cb.transition(StateHalfOpen)
		cb.failures = 0
		return nil
	default:
		return &OpenError{RetryAfter: cb.cooldown}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.threshold {
		cb.transition(StateOpen)
		cb.openedAt = time.Now()
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
	cb.failures = 0
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailures returns the current consecutive failure count.
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset returns the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
}
