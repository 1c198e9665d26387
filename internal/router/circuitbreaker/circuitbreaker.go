// Package circuitbreaker tracks gateway health per provider and short-circuits
// calls to a provider that keeps failing.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of a provider's circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold  = 5
	defaultResetTimeout      = 30 * time.Second
	defaultHalfOpenSuccesses = 1
)

// Config holds breaker settings. Zero values fall back to defaults.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a probe is allowed.
	ResetTimeout time.Duration
	// HalfOpenSuccesses is the number of successful probes that close the circuit.
	HalfOpenSuccesses int
	// OnStateChange is invoked outside the lock after every transition.
	OnStateChange func(provider string, from, to State)
	Now           func() time.Time
}

type providerState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openUntil            time.Time
}

// CircuitBreaker is an in-memory, per-provider breaker safe for concurrent use.
type CircuitBreaker struct {
	mu        sync.Mutex
	providers map[string]*providerState
	cfg       Config
}

// NewCircuitBreaker creates a breaker with cfg, filling unset fields with defaults.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = defaultHalfOpenSuccesses
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		providers: make(map[string]*providerState),
		cfg:       cfg,
	}
}

// getProviderState must be called with cb.mu held.
func (cb *CircuitBreaker) getProviderState(provider string) *providerState {
	ps, ok := cb.providers[provider]
	if !ok {
		ps = &providerState{state: StateClosed}
		cb.providers[provider] = ps
	}
	return ps
}

func (cb *CircuitBreaker) notify(provider string, from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(provider, from, to)
	}
}

// AllowRequest reports whether a call to provider may proceed. An open circuit
// whose reset timeout has elapsed moves to HalfOpen and lets the call through.
func (cb *CircuitBreaker) AllowRequest(provider string) bool {
	cb.mu.Lock()
	ps := cb.getProviderState(provider)
	from := ps.state
	allowed := true
	if ps.state == StateOpen {
		if cb.cfg.Now().Before(ps.openUntil) {
			allowed = false
		} else {
			ps.state = StateHalfOpen
			ps.consecutiveFailures = 0
			ps.consecutiveSuccesses = 0
		}
	}
	to := ps.state
	cb.mu.Unlock()

	cb.notify(provider, from, to)
	return allowed
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure(provider string) {
	cb.mu.Lock()
	ps := cb.getProviderState(provider)
	from := ps.state
	switch ps.state {
	case StateClosed:
		ps.consecutiveFailures++
		if ps.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.trip(ps)
		}
	case StateHalfOpen:
		ps.consecutiveFailures = cb.cfg.FailureThreshold
		cb.trip(ps)
	case StateOpen:
	}
	to := ps.state
	cb.mu.Unlock()

	cb.notify(provider, from, to)
}

func (cb *CircuitBreaker) trip(ps *providerState) {
	ps.state = StateOpen
	ps.consecutiveSuccesses = 0
	ps.openUntil = cb.cfg.Now().Add(cb.cfg.ResetTimeout)
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess(provider string) {
	cb.mu.Lock()
	ps := cb.getProviderState(provider)
	from := ps.state
	switch ps.state {
	case StateClosed:
		ps.consecutiveFailures = 0
	case StateHalfOpen:
		ps.consecutiveSuccesses++
		if ps.consecutiveSuccesses >= cb.cfg.HalfOpenSuccesses {
			ps.state = StateClosed
			ps.consecutiveFailures = 0
			ps.consecutiveSuccesses = 0
		}
	case StateOpen:
	}
	to := ps.state
	cb.mu.Unlock()

	cb.notify(provider, from, to)
}

// GetProviderStatus returns the circuit state and consecutive failure count
// without triggering the Open to HalfOpen transition.
func (cb *CircuitBreaker) GetProviderStatus(provider string) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	ps, ok := cb.providers[provider]
	if !ok {
		return StateClosed, 0
	}
	return ps.state, ps.consecutiveFailures
}
