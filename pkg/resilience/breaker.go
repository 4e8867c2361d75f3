package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without attempting the operation while the
// breaker is open. Callers should back off.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// Breaker provides fast-fail behaviour when a dependency fails repeatedly.
// After FailureThreshold consecutive failures it opens for BreakDuration,
// then allows exactly one half-open probe; the probe's outcome decides
// whether the circuit closes again or re-opens.
type Breaker struct {
	FailureThreshold int
	BreakDuration    time.Duration

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probeInUse bool
	now        func() time.Time // override in tests
}

// NewBreaker returns a closed breaker with the given thresholds.
func NewBreaker(failureThreshold int, breakDuration time.Duration) *Breaker {
	return &Breaker{
		FailureThreshold: failureThreshold,
		BreakDuration:    breakDuration,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. Returns ErrCircuitOpen when the
// circuit is open or a half-open probe is already in flight. A successful
// Allow during half-open claims the single probe slot.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.BreakDuration {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probeInUse = true
		return nil
	default: // StateHalfOpen
		if b.probeInUse {
			return ErrCircuitOpen
		}
		b.probeInUse = true
		return nil
	}
}

// RecordSuccess resets the failure count; a successful half-open probe closes
// the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInUse = false
	b.state = StateClosed
}

// RecordFailure counts a consecutive failure. Reaching the threshold opens
// the circuit; so does failing the half-open probe.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		b.failures = 0
		b.probeInUse = false
	default:
		b.failures++
		if b.failures >= b.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
		}
	}
}

// GetState returns the current state.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
