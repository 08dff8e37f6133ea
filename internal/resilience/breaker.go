// Package resilience guards calls to upstream providers so a failing
// API does not get hammered for the rest of a pipeline run.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker position
type State int32

const (
	// StateClosed passes calls through normally
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through
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

// ErrOpen is returned while the breaker is rejecting calls
var ErrOpen = errors.New("upstream suspended after repeated failures")

// Config tunes a Breaker
type Config struct {
	// FailureThreshold is the run of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// HalfOpenProbes is how many probe calls may run at once in the
	// half-open state, and how many must succeed to close again.
	HalfOpenProbes uint32
	// OnStateChange, when set, observes every transition.
	OnStateChange func(from, to State)
}

// DefaultConfig suits the external APIs the pipeline calls
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenProbes:   2,
	}
}

// Breaker trips after a run of consecutive upstream failures and
// recovers through a half-open probe phase.
type Breaker struct {
	cfg Config

	mu             sync.Mutex
	state          State
	failures       uint32
	probeSuccesses uint32
	probesInFlight uint32
	openedAt       time.Time
}

// New creates a breaker, filling zero config fields with defaults
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	return &Breaker{cfg: cfg}
}

// Allow reports whether a call may proceed. Callers that get nil must
// follow up with Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probesInFlight++
		return nil
	case StateHalfOpen:
		if b.probesInFlight >= b.cfg.HalfOpenProbes {
			return ErrOpen
		}
		b.probesInFlight++
		return nil
	}
	return nil
}

// Record reports the outcome of a call previously admitted by Allow
func (b *Breaker) Record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if ok {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		if b.probesInFlight > 0 {
			b.probesInFlight--
		}
		if !ok {
			b.transition(StateOpen)
			return
		}
		b.probeSuccesses++
		if b.probeSuccesses >= b.cfg.HalfOpenProbes {
			b.transition(StateClosed)
		}
	}
}

// Do runs fn under the breaker
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(err == nil)
	return err
}

// State returns the current breaker position
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// transition must be called with the lock held
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = time.Now()
	case StateHalfOpen:
		b.probeSuccesses = 0
		b.probesInFlight = 0
	case StateClosed:
		b.failures = 0
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
