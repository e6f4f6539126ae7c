package resilience

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	Closed   BreakerState = "closed"
	Open     BreakerState = "open"
	HalfOpen BreakerState = "half_open"
)

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	RecoveryTimeout  time.Duration // open -> half-open delay
	MinRequests      int           // failures only open the breaker past this volume
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		MinRequests:      10,
	}
}

// CircuitBreaker short-circuits calls to a repeatedly failing function.
// The lock guards only state inspection and transitions, never the
// wrapped call itself.
type CircuitBreaker struct {
	mu           sync.Mutex
	config       BreakerConfig
	state        BreakerState
	failureCount int
	successCount int
	requestCount int
	lastFailure  time.Time
	now          func() time.Time // test hook
}

func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		state:  Closed,
		now:    time.Now,
	}
}

// Allow admits or rejects a new attempt, transitioning Open -> HalfOpen
// when the recovery timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Open:
		if cb.now().Sub(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.state = HalfOpen
			cb.requestCount++
			return true
		}
		return false
	default:
		cb.requestCount++
		return true
	}
}

// RecordSuccess closes the breaker and resets counters.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount++
	if cb.state == HalfOpen {
		cb.state = Closed
		cb.failureCount = 0
		cb.successCount = 0
		cb.requestCount = 0
		return
	}
	cb.failureCount = 0
}

// RecordFailure counts a failure, opening the breaker once the threshold
// is crossed with enough request volume. A half-open failure reopens
// immediately and restarts the recovery timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailure = cb.now()

	if cb.state == HalfOpen {
		cb.state = Open
		return
	}
	if cb.failureCount >= cb.config.FailureThreshold && cb.requestCount >= cb.config.MinRequests {
		cb.state = Open
	}
}

// State returns the current position without transitioning.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot reports the counters for observability.
func (cb *CircuitBreaker) Snapshot() (state BreakerState, failures, successes, requests int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.successCount, cb.requestCount
}

// BreakerRegistry holds one breaker per fully-qualified function name.
type BreakerRegistry struct {
	mu       sync.Mutex
	config   BreakerConfig
	breakers map[string]*CircuitBreaker
}

func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(r.config)
		r.breakers[name] = cb
	}
	return cb
}
