// Package circuitbreaker guards the settlement backend. Server, rate limit and
// transport failures inside a window open the circuit, and calls fail fast
// until the reset timeout passes or an operator resets it.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
	"github.com/speedrun-hq/speedrun-executor/pkg/metrics"
)

// CircuitBreaker counts backend failures in a sliding window
type CircuitBreaker struct {
	enabled       bool
	failThreshold int
	failureWindow time.Duration
	resetTimeout  time.Duration
	logger        logger.Logger
	now           func() time.Time

	mu           sync.Mutex
	failureCount int
	lastFailure  time.Time
	tripped      bool
	tripTime     time.Time
}

// State is a snapshot of the breaker reported on the status endpoint
type State struct {
	Enabled     bool
	Open        bool
	Failures    int
	Threshold   int
	Window      time.Duration
	LastFailure time.Time
	TrippedAt   time.Time
}

// NewCircuitBreaker returns a breaker that opens after threshold backend failures within window
func NewCircuitBreaker(enabled bool, threshold int, window time.Duration, resetTimeout time.Duration, log logger.Logger) *CircuitBreaker {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &CircuitBreaker{
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		logger:        log,
		now:           time.Now,
	}
}

func (cb *CircuitBreaker) setTripped(tripped bool, at time.Time) {
	cb.tripped = tripped
	if tripped {
		cb.tripTime = at
		metrics.CircuitOpen.Set(1)
		return
	}
	cb.failureCount = 0
	metrics.CircuitOpen.Set(0)
}

// closeIfExpired half-closes an open circuit once the reset timeout has passed.
// Callers hold mu.
func (cb *CircuitBreaker) closeIfExpired(now time.Time) {
	if cb.tripped && now.Sub(cb.tripTime) > cb.resetTimeout {
		cb.logger.Notice("Backend circuit breaker: retrying after %s", cb.resetTimeout)
		cb.setTripped(false, now)
	}
}

// RecordFailure counts a failed backend call and reports whether the circuit is open
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.closeIfExpired(now)
	if cb.tripped {
		return true
	}

	if now.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}
	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount < cb.failThreshold {
		return false
	}
	cb.setTripped(true, now)
	cb.logger.Error("Backend circuit breaker open: %d failures within %s", cb.failureCount, cb.failureWindow)
	return true
}

// RecordSuccess clears the failure count of a closed circuit
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.tripped {
		cb.failureCount = 0
	}
}

// IsOpen reports whether backend calls should fail without a request
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.closeIfExpired(cb.now())
	return cb.tripped
}

// Reset closes the circuit, used by the admin endpoint
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setTripped(false, cb.now())
}

// State returns a snapshot of the breaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.enabled {
		cb.closeIfExpired(cb.now())
	}
	s := State{
		Enabled:     cb.enabled,
		Open:        cb.enabled && cb.tripped,
		Failures:    cb.failureCount,
		Threshold:   cb.failThreshold,
		Window:      cb.failureWindow,
		LastFailure: cb.lastFailure,
	}
	if s.Open {
		s.TrippedAt = cb.tripTime
	}
	return s
}
