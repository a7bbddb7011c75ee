package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_CircuitBreakerStateMachine(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genThreshold := gen.IntRange(1, 10)
	genCooldown := gen.IntRange(10, 100).Map(func(ms int) time.Duration {
		return time.Duration(ms) * time.Millisecond
	})

	properties.Property("breaker opens exactly at the failure threshold", prop.ForAll(
		func(threshold int, cooldown time.Duration) bool {
			cb := NewCircuitBreaker(threshold, cooldown)

			failingFn := func() error {
				return errors.New("operation failed")
			}

			for i := 0; i < threshold; i++ {
				if cb.GetState() != StateClosed {
					t.Logf("circuit opened early at iteration %d", i)
					return false
				}
				if err := cb.Execute(failingFn); err == nil {
					t.Logf("expected error from failing function at iteration %d", i)
					return false
				}
			}

			if cb.GetState() != StateOpen {
				t.Logf("expected Open after %d failures, got %v", threshold, cb.GetState())
				return false
			}

			err := cb.Execute(failingFn)
			if !errors.Is(err, ErrCircuitBreakerOpen) {
				t.Logf("expected ErrCircuitBreakerOpen, got %v", err)
				return false
			}
			var openErr *OpenError
			if !errors.As(err, &openErr) || openErr.RetryAfter <= 0 {
				t.Logf("expected positive RetryAfter, got %v", err)
				return false
			}

			return true
		},
		genThreshold,
		genCooldown,
	))

	properties.Property("a successful probe after the cool-down closes the circuit", prop.ForAll(
		func(threshold int, cooldown time.Duration) bool {
			cb := NewCircuitBreaker(threshold, cooldown)

			failingFn := func() error {
				return errors.New("operation failed")
			}

			for i := 0; i < threshold; i++ {
				cb.Execute(failingFn)
			}

			time.Sleep(cooldown + 10*time.Millisecond)

			if err := cb.Execute(func() error { return nil }); err != nil {
				t.Logf("expected successful probe, got %v", err)
				return false
			}

			return cb.GetState() == StateClosed && cb.GetFailures() == 0
		},
		genThreshold,
		genCooldown,
	))

	properties.Property("success in Closed state resets the failure count", prop.ForAll(
		func(threshold int, cooldown time.Duration, failureCount int) bool {
			if failureCount >= threshold {
				failureCount = threshold - 1
			}
			if failureCount < 1 {
				return true
			}

			cb := NewCircuitBreaker(threshold, cooldown)

			for i := 0; i < failureCount; i++ {
				cb.Execute(func() error { return errors.New("operation failed") })
			}

			if cb.GetFailures() != failureCount {
				t.Logf("expected %d failures, got %d", failureCount, cb.GetFailures())
				return false
			}

			if err := cb.Execute(func() error { return nil }); err != nil {
				t.Logf("expected successful execution, got %v", err)
				return false
			}

			return cb.GetFailures() == 0 && cb.GetState() == StateClosed
		},
		gen.IntRange(2, 10),
		genCooldown,
		gen.IntRange(1, 9),
	))

	properties.TestingRun(t)
}

func TestProperty_CircuitBreakerThreadSafety(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	genThreshold := gen.IntRange(3, 10)
	genCooldown := gen.IntRange(50, 200).Map(func(ms int) time.Duration {
		return time.Duration(ms) * time.Millisecond
	})
	genGoroutines := gen.IntRange(2, 10)

	properties.Property("concurrent executions leave the breaker in a valid state", prop.ForAll(
		func(threshold int, cooldown time.Duration, numGoroutines int) bool {
			cb := NewCircuitBreaker(threshold, cooldown)

			done := make(chan bool, numGoroutines)
			for i := 0; i < numGoroutines; i++ {
				go func(id int) {
					defer func() {
						if r := recover(); r != nil {
							t.Logf("goroutine %d panicked: %v", id, r)
							done <- false
							return
						}
						done <- true
					}()

					for j := 0; j < 5; j++ {
						var fn func() error
						if j%2 == 0 {
							fn = func() error { return nil }
						} else {
							fn = func() error { return errors.New("failed") }
						}

						cb.Execute(fn)
						_ = cb.GetState()
						_ = cb.GetFailures()
					}
				}(i)
			}

			for i := 0; i < numGoroutines; i++ {
				if !<-done {
					return false
				}
			}

			state := cb.GetState()
			return state == StateClosed || state == StateOpen || state == StateHalfOpen
		},
		genThreshold,
		genCooldown,
		genGoroutines,
	))

	properties.TestingRun(t)
}
