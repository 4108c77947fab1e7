package chainclient

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker opens after a run of consecutive failures and, once the
// cooldown has passed, lets calls through in a half-open state, per chain
// endpoint. The next recorded success closes it and a failure re-opens it;
// calls made while half-open are not limited to one.
type CircuitBreaker struct {
	mu sync.Mutex

	openAfter   int
	halfOpenFor time.Duration

	state        breakerState
	failureCount int
	openedAt     time.Time
}

// NewCircuitBreaker builds a breaker. openAfter<=0 disables tripping.
func NewCircuitBreaker(openAfter int, halfOpenFor time.Duration) *CircuitBreaker {
	return &CircuitBreaker{openAfter: openAfter, halfOpenFor: halfOpenFor, state: stateClosed}
}

// Allow reports whether a call may proceed, transitioning open->half-open
// once the cooldown has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) >= b.halfOpenFor {
			b.state = stateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = stateClosed
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openAfter <= 0 {
		return
	}
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		return
	}
	b.failureCount++
	if b.failureCount >= b.openAfter {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}

// State reports the current breaker state for metrics/diagnostics.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}
