package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// StateChangeFunc observes breaker transitions. It runs with the breaker lock held
// and must not call back into the breaker.
type StateChangeFunc func(from, to CircuitState)

// Counts is a point-in-time view of the breaker, used for logs and tests.
type Counts struct {
	State               CircuitState
	ConsecutiveFailures int
	Rejected            int64
	OpenedAt            time.Time
}

// CircuitBreaker guards a single upstream dependency. A nil *CircuitBreaker
// allows every call, which is what a disabled config produces.
type CircuitBreaker struct {
	mu  sync.Mutex
	cfg CircuitBreakerConfig

	state    CircuitState
	failures int
	openedAt time.Time
	rejected int64

	probesInFlight int
	probesPassed   int

	onStateChange StateChangeFunc
	now           func() time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	return &CircuitBreaker{
		cfg:   NormalizeCircuitBreakerConfig(cfg),
		state: CircuitStateClosed,
		now:   time.Now,
	}
}

func (b *CircuitBreaker) OnStateChange(fn StateChangeFunc) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// Execute runs fn when the breaker allows it. Only errors for which isFailure
// returns true count against the breaker; a nil isFailure counts every error.
func (b *CircuitBreaker) Execute(fn func() error, isFailure func(error) bool) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn()
	if err != nil && (isFailure == nil || isFailure(err)) {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
	return err
}

func (b *CircuitBreaker) Allow() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitStateOpen && b.cooledDown(b.now()) {
		b.moveTo(CircuitStateHalfOpen)
	}

	switch b.state {
	case CircuitStateOpen:
		b.rejected++
		return ErrCircuitOpen
	case CircuitStateHalfOpen:
		if b.probesInFlight >= b.cfg.HalfOpenMaxReq {
			b.rejected++
			return ErrCircuitOpen
		}
		b.probesInFlight++
	}
	return nil
}

func (b *CircuitBreaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitStateClosed:
		b.failures = 0
	case CircuitStateHalfOpen:
		b.releaseProbe()
		b.probesPassed++
		if b.probesPassed >= b.cfg.HalfOpenMaxReq && b.probesInFlight == 0 {
			b.moveTo(CircuitStateClosed)
		}
	}
}

func (b *CircuitBreaker) RecordFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitStateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.moveTo(CircuitStateOpen)
		}
	case CircuitStateHalfOpen:
		// One failed probe is enough to trip again.
		b.releaseProbe()
		b.moveTo(CircuitStateOpen)
	case CircuitStateOpen:
		b.openedAt = b.now()
	}
}

func (b *CircuitBreaker) State() CircuitState {
	return b.Counts().State
}

func (b *CircuitBreaker) Counts() Counts {
	if b == nil {
		return Counts{State: CircuitStateClosed}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state == CircuitStateOpen && b.cooledDown(b.now()) {
		state = CircuitStateHalfOpen
	}
	return Counts{
		State:               state,
		ConsecutiveFailures: b.failures,
		Rejected:            b.rejected,
		OpenedAt:            b.openedAt,
	}
}

func (b *CircuitBreaker) cooledDown(now time.Time) bool {
	return now.Sub(b.openedAt) >= b.cfg.OpenTimeout
}

func (b *CircuitBreaker) releaseProbe() {
	if b.probesInFlight > 0 {
		b.probesInFlight--
	}
}

func (b *CircuitBreaker) moveTo(next CircuitState) {
	prev := b.state
	b.state = next
	b.probesInFlight = 0
	b.probesPassed = 0

	switch next {
	case CircuitStateClosed:
		b.failures = 0
		b.openedAt = time.Time{}
	case CircuitStateOpen:
		b.openedAt = b.now()
	}
	if prev != next && b.onStateChange != nil {
		b.onStateChange(prev, next)
	}
}
