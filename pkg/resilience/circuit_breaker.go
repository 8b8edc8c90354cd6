package resilience

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of a CircuitBreaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the protected function
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a CircuitBreaker
type BreakerConfig struct {
	// Counts reports whether err is an upstream fault. Caller errors such as
	// a 4xx from the gateway should not trip the breaker. Nil counts every error.
	Counts func(err error) bool

	// CoolDown is how long the breaker stays open before letting a probe through
	CoolDown time.Duration

	// MaxFailures consecutive counted failures open the breaker
	MaxFailures int

	// HalfOpenProbes is how many concurrent calls are admitted while half-open
	HalfOpenProbes int
}

// DefaultBreakerConfig opens after 5 consecutive failures for 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:    5,
		CoolDown:       30 * time.Second,
		HalfOpenProbes: 1,
	}
}

// CircuitBreaker fails fast while an upstream dependency is unhealthy
type CircuitBreaker struct {
	openedAt time.Time
	now      func() time.Time
	cfg      BreakerConfig
	mu       sync.Mutex
	state    BreakerState
	failures int
	probes   int
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the breaker is open
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.CoolDown {
		return BreakerHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen {
		if cb.now().Sub(cb.openedAt) < cb.cfg.CoolDown {
			return ErrCircuitOpen
		}
		cb.state = BreakerHalfOpen
		cb.probes = 0
	}
	if cb.state == BreakerHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenProbes {
			return ErrCircuitOpen
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && (cb.cfg.Counts == nil || cb.cfg.Counts(err))

	if cb.state == BreakerHalfOpen {
		cb.probes--
		if failed {
			cb.trip()
			return
		}
		cb.state = BreakerClosed
		cb.failures = 0
		return
	}

	if !failed {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.MaxFailures {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = BreakerOpen
	cb.openedAt = cb.now()
	cb.failures = 0
	cb.probes = 0
}
