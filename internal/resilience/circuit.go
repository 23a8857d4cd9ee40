// Package resilience provides retry and circuit breaking for calls to the
// upstream prediction service.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets queries through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects queries until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets a probe through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a query is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transient failures that
	// opens the circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open. Default: 30s.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the breaker policy used per prediction model.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

type breaker struct {
	state    CircuitState
	failures int
	openedAt time.Time
}

// Breakers holds one circuit per key (a prediction model id). Only transient
// failures count toward opening; a not-found answer is a healthy response.
type Breakers struct {
	cfg      BreakerConfig
	mu       sync.Mutex
	breakers map[string]*breaker

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreakers creates a per-key breaker registry.
func NewBreakers(cfg BreakerConfig) *Breakers {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &Breakers{
		cfg:      cfg,
		breakers: make(map[string]*breaker),
		nowFunc:  time.Now,
	}
}

// Allow returns ErrCircuitOpen if the circuit for key is open. An open circuit
// past its reset timeout moves to half-open and admits the caller.
func (b *Breakers) Allow(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.get(key)
	if br.state == CircuitOpen {
		if b.nowFunc().Sub(br.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transition(key, br, CircuitHalfOpen)
	}
	return nil
}

// Record feeds the outcome of an admitted call back into the circuit for key.
func (b *Breakers) Record(key string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.get(key)
	if err == nil || !IsTransient(err) {
		br.failures = 0
		if br.state != CircuitClosed {
			b.transition(key, br, CircuitClosed)
		}
		return
	}

	br.failures++
	if br.state == CircuitHalfOpen || br.failures >= b.cfg.FailureThreshold {
		br.openedAt = b.nowFunc()
		if br.state != CircuitOpen {
			b.transition(key, br, CircuitOpen)
		}
	}
}

// State returns the current state of the circuit for key.
func (b *Breakers) State(key string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	br, ok := b.breakers[key]
	if !ok {
		return CircuitClosed
	}
	if br.state == CircuitOpen && b.nowFunc().Sub(br.openedAt) >= b.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return br.state
}

func (b *Breakers) get(key string) *breaker {
	br, ok := b.breakers[key]
	if !ok {
		br = &breaker{state: CircuitClosed}
		b.breakers[key] = br
	}
	return br
}

func (b *Breakers) transition(key string, br *breaker, to CircuitState) {
	zap.L().Info("prediction circuit state change",
		zap.String("key", key),
		zap.Stringer("from", br.state),
		zap.Stringer("to", to),
	)
	br.state = to
}
