// Package resilience provides circuit breaker and provider failover primitives
// for the recognition and generation services.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open).
// [FallbackGroup] puts a breaker in front of each of several interchangeable
// providers so a failing primary is bypassed in favour of the next healthy
// one. [LLMFallback] and [STTFallback] adapt a group to the provider
// interfaces.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log messages and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close again.
	// Default: 3.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition with the
	// breaker's name. It runs with the breaker unlocked.
	OnStateChange func(name string, from, to State)

	// Now replaces time.Now. Tests only.
	Now func() time.Time
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenCalls   int
	halfOpenOK      int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           cfg.Now,
		state:         StateClosed,
	}
}

// Name returns the configured name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn.
//
// Errors matching [context.Canceled] or [context.DeadlineExceeded] are passed
// through without being counted: the caller gave up, the provider did not
// fail.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	var changed []transition
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		changed = append(changed, cb.setState(StateHalfOpen))
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	probe := cb.state == StateHalfOpen
	if probe {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()
	cb.notify(changed)

	err := fn()

	cb.mu.Lock()
	switch {
	case err == nil:
		changed = cb.recordSuccess(probe)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if probe {
			cb.halfOpenCalls--
		}
		changed = nil
	default:
		changed = cb.recordFailure(probe)
	}
	cb.mu.Unlock()
	cb.notify(changed)
	return err
}

type transition struct{ from, to State }

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(to State) transition {
	t := transition{from: cb.state, to: to}
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	return t
}

func (cb *CircuitBreaker) notify(ts []transition) {
	for _, t := range ts {
		switch t.to {
		case StateOpen:
			slog.Warn("circuit breaker opened", "name", cb.name, "from", t.from.String())
		default:
			slog.Info("circuit breaker state change", "name", cb.name, "from", t.from.String(), "to", t.to.String())
		}
		if cb.onStateChange != nil {
			cb.onStateChange(cb.name, t.from, t.to)
		}
	}
}

// recordFailure must be called with cb.mu held.
func (cb *CircuitBreaker) recordFailure(probe bool) []transition {
	if probe {
		cb.consecutiveFail = cb.maxFailures
		return []transition{cb.setState(StateOpen)}
	}
	cb.consecutiveFail++
	if cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures {
		return []transition{cb.setState(StateOpen)}
	}
	return nil
}

// recordSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess(probe bool) []transition {
	if !probe {
		cb.consecutiveFail = 0
		return nil
	}
	cb.halfOpenOK++
	if cb.state == StateHalfOpen && cb.halfOpenOK >= cb.halfOpenMax {
		cb.consecutiveFail = 0
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
		return []transition{cb.setState(StateClosed)}
	}
	return nil
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed].
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var changed []transition
	if cb.state != StateClosed {
		changed = append(changed, cb.setState(StateClosed))
	}
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
	cb.mu.Unlock()
	cb.notify(changed)
}
