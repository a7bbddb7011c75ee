package resilience

import (
	"sync"
	"time"
)

// BreakerGroup maintains one circuit breaker per key, creating breakers
// lazily with a shared threshold and cool-down. Keys typically name the
// protected dependency ("stripe", "geocoder").
type BreakerGroup struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerGroup creates a group whose breakers open after threshold
// consecutive failures and probe again after cooldown.
func NewBreakerGroup(threshold int, cooldown time.Duration) *BreakerGroup {
	return &BreakerGroup{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*CircuitBreaker),
	}
}

// Execute runs fn through the breaker registered for key.
func (g *BreakerGroup) Execute(key string, fn func() error) error {
	err := g.breaker(key).Execute(fn)
	if _, open := err.(*OpenError); open {
		recordBreakerRejection(key)
	}
	return err
}

// Reset closes the breaker for key, if one exists.
func (g *BreakerGroup) Reset(key string) {
	g.mu.Lock()
	cb, ok := g.breakers[key]
	g.mu.Unlock()
	if ok {
		cb.Reset()
	}
}

// States snapshots the current state of every registered breaker.
func (g *BreakerGroup) States() map[string]State {
	g.mu.Lock()
	defer g.mu.Unlock()

	states := make(map[string]State, len(g.breakers))
	for key, cb := range g.breakers {
		states[key] = cb.GetState()
	}
	return states
}

func (g *BreakerGroup) breaker(key string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(g.threshold, g.cooldown)
		cb.onStateChange = func(_, to State) {
			recordBreakerTransition(key, to)
		}
		g.breakers[key] = cb
	}
	return cb
}

// Do runs a value-returning operation through the group's breaker for key.
func Do[T any](g *BreakerGroup, key string, fn func() (T, error)) (T, error) {
	var data T
	err := g.Execute(key, func() error {
		var err error
		data, err = fn()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return data, nil
}
