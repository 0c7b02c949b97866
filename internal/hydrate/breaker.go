package hydrate

import (
	"sync"
	"time"

	"github.com/rendis/opfilter/pkg/schema"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, rejecting hydrations
	CircuitHalfOpen                     // Testing recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before transitioning to half-open.
	Cooldown time.Duration
	// HalfOpenMax is the number of test requests allowed in half-open state.
	HalfOpenMax int
}

// DefaultBreakerConfig returns the configuration used by the CLI.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenMax:      1,
	}
}

type breaker struct {
	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	lastFailureTime     time.Time
	halfOpenAttempts    int
	config              BreakerConfig
}

// BreakerRegistry manages one circuit breaker per entity type.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	config   BreakerConfig
	now      func() time.Time
}

// NewBreakerRegistry creates a new registry with the given config.
func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*breaker),
		config:   config,
		now:      time.Now,
	}
}

// Allow checks whether a hydration of entityType may proceed.
// Returns nil if allowed, or a CIRCUIT_OPEN FilterError.
func (r *BreakerRegistry) Allow(entityType string) error {
	cb := r.getOrCreate(entityType)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		elapsed := r.now().Sub(cb.lastFailureTime)
		if elapsed >= cb.config.Cooldown {
			cb.state = CircuitHalfOpen
			cb.halfOpenAttempts = 1 // this request is the first probe
			return nil
		}
		return schema.NewErrorf(schema.ErrCodeCircuitOpen,
			"hydration of %q entities suspended after %d consecutive failures",
			entityType, cb.consecutiveFailures).
			WithDetails(map[string]any{
				"type":                 entityType,
				"consecutive_failures": cb.consecutiveFailures,
				"cooldown_remaining":   (cb.config.Cooldown - elapsed).String(),
			})

	case CircuitHalfOpen:
		if cb.halfOpenAttempts >= cb.config.HalfOpenMax {
			return schema.NewErrorf(schema.ErrCodeCircuitOpen,
				"hydration of %q entities half-open: max probe requests reached", entityType)
		}
		cb.halfOpenAttempts++
	}
	return nil
}

// RecordSuccess closes the circuit for entityType.
func (r *BreakerRegistry) RecordSuccess(entityType string) {
	cb := r.getOrCreate(entityType)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.halfOpenAttempts = 0
	cb.state = CircuitClosed
}

// RecordFailure records a failed hydration and returns the new state.
func (r *BreakerRegistry) RecordFailure(entityType string) CircuitState {
	cb := r.getOrCreate(entityType)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = r.now()

	// Any failure while half-open reopens the circuit.
	if cb.state == CircuitHalfOpen || cb.consecutiveFailures >= cb.config.FailureThreshold {
		cb.state = CircuitOpen
	}
	return cb.state
}

// State returns the current state of the circuit for entityType.
func (r *BreakerRegistry) State(entityType string) CircuitState {
	cb := r.getOrCreate(entityType)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && r.now().Sub(cb.lastFailureTime) >= cb.config.Cooldown {
		cb.state = CircuitHalfOpen
		cb.halfOpenAttempts = 0
	}
	return cb.state
}

func (r *BreakerRegistry) getOrCreate(entityType string) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[entityType]
	if !ok {
		cb = &breaker{state: CircuitClosed, config: r.config}
		r.breakers[entityType] = cb
	}
	return cb
}
