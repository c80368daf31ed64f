// Package dispatch implements C5: the provider dispatcher that arbitrates
// every remote-ASR-fallback and summarization call through a circuit
// breaker, a budget ledger, and a cost estimate (spec.md §4.5).
package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/scribeflow/meetcore/internal/logging"
)

// ErrCircuitOpen is returned when a breaker rejects an attempt outright.
var ErrCircuitOpen = errors.New("dispatch: circuit breaker is open")

// State is one of Closed, Open, HalfOpen.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

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

// BreakerConfig holds tuning knobs for a CircuitBreaker. Zero values are
// replaced by spec.md §4.5 defaults.
type BreakerConfig struct {
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state before the breaker opens. Default: 3.
	FailureThreshold int

	// TimeoutDuration is how long the breaker stays open before a probe is
	// allowed through (transition to HalfOpen). Default: 60s.
	TimeoutDuration time.Duration
}

// CircuitBreaker is a per-provider three-state health gate (spec.md §4.5).
// The hot path (CanAttempt) is a single brief mutex acquisition per the
// design note against lock-free state machines for this component.
type CircuitBreaker struct {
	name            string
	failureThresh   int
	timeoutDuration time.Duration
	logger          logging.Logger

	mu            sync.Mutex
	state         State
	failureCount  int
	lastFailure   time.Time
	lastSuccess   time.Time
	halfOpenInUse bool
}

// NewCircuitBreaker builds a breaker from cfg, defaulting zero fields.
func NewCircuitBreaker(cfg BreakerConfig, logger logging.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.TimeoutDuration <= 0 {
		cfg.TimeoutDuration = 60 * time.Second
	}
	return &CircuitBreaker{
		name:            cfg.Name,
		failureThresh:   cfg.FailureThreshold,
		timeoutDuration: cfg.TimeoutDuration,
		logger:          logging.OrDefault(logger),
		state:           StateClosed,
	}
}

// CanAttempt reports whether a call should be allowed through right now,
// transitioning Open→HalfOpen as a side effect once the timeout has
// elapsed. Only one probe is admitted at a time while HalfOpen.
func (cb *CircuitBreaker) CanAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.canAttemptLocked()
}

func (cb *CircuitBreaker) canAttemptLocked() bool {
	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.timeoutDuration {
			cb.state = StateHalfOpen
			cb.halfOpenInUse = false
			cb.logger.Info("circuit breaker half-open", "provider", cb.name)
		} else {
			return false
		}
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenInUse {
			return false
		}
		cb.halfOpenInUse = true
		return true
	default:
		return false
	}
}

// RecordSuccess transitions Closed(count←0) or HalfOpen→Closed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastSuccess = time.Now()
	cb.failureCount = 0
	cb.halfOpenInUse = false
	if cb.state != StateClosed {
		cb.logger.Info("circuit breaker closed", "provider", cb.name)
	}
	cb.state = StateClosed
}

// RecordFailure transitions Closed(count++, open at threshold) or
// HalfOpen→Open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()
	cb.halfOpenInUse = false

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.logger.Warn("circuit breaker re-opened from half-open", "provider", cb.name)
		return
	}

	cb.failureCount++
	if cb.failureCount >= cb.failureThresh {
		cb.state = StateOpen
		cb.logger.Warn("circuit breaker opened", "provider", cb.name, "consecutive_failures", cb.failureCount)
	}
}

// State returns the breaker's current observable state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.timeoutDuration {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to Closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.halfOpenInUse = false
}
