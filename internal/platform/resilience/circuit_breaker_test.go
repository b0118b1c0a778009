package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeout: 5 * time.Second, HalfOpenMaxReq: 1})

	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected half-open state, got %s", state)
	}

	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open probe, got %s", state)
	}
}

func TestCircuitBreaker_ExecuteCountsOnlyClassifiedFailures(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Minute, HalfOpenMaxReq: 1})
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	transient := errors.New("upstream 503")
	client := errors.New("upstream 404")
	isTransient := func(err error) bool { return errors.Is(err, transient) }

	if err := b.Execute(func() error { return client }, isTransient); !errors.Is(err, client) {
		t.Fatalf("expected client error passthrough, got %v", err)
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("client errors must not open the breaker, got %s", state)
	}

	if err := b.Execute(func() error { return transient }, isTransient); !errors.Is(err, transient) {
		t.Fatalf("expected transient error passthrough, got %v", err)
	}
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after transient failure, got %s", state)
	}

	called := false
	err := b.Execute(func() error { called = true; return nil }, isTransient)
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected short-circuit while open, err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Second, HalfOpenMaxReq: 1})
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	var transitions []string
	b.OnStateChange(func(from, to CircuitState) {
		transitions = append(transitions, string(from)+"->"+string(to))
	})

	b.RecordFailure()
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe: %v", err)
	}
	b.RecordSuccess()

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

func TestCircuitBreaker_NilAndDisabled(t *testing.T) {
	t.Parallel()

	var b *CircuitBreaker
	if err := b.Allow(); err != nil {
		t.Fatalf("nil breaker must allow: %v", err)
	}
	if b.State() != CircuitStateClosed {
		t.Fatalf("nil breaker must report closed")
	}
	if got := NewCircuitBreaker(CircuitBreakerConfig{Enabled: false}); got != nil {
		t.Fatalf("disabled config must yield nil breaker")
	}
	if got := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true}); got == nil {
		t.Fatalf("enabled config must yield breaker")
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbesAndCountsRejections(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Second, HalfOpenMaxReq: 2})
	now := time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection while open, got %v", err)
	}

	now = now.Add(time.Second)
	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected third probe rejected, got %v", err)
	}

	b.RecordSuccess()
	if got := b.State(); got != CircuitStateHalfOpen {
		t.Fatalf("expected half-open until every probe returns, got %s", got)
	}
	b.RecordSuccess()

	counts := b.Counts()
	if counts.State != CircuitStateClosed {
		t.Fatalf("expected closed, got %s", counts.State)
	}
	if counts.Rejected != 2 {
		t.Fatalf("expected 2 rejections, got %d", counts.Rejected)
	}
	if !counts.OpenedAt.IsZero() {
		t.Fatalf("expected opened_at cleared on close")
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker(CircuitBreakerConfig{Enabled: true, FailureThreshold: 3, OpenTimeout: time.Second, HalfOpenMaxReq: 1})
	now := time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe allowed: %v", err)
	}
	b.RecordFailure()

	counts := b.Counts()
	if counts.State != CircuitStateOpen {
		t.Fatalf("expected reopen after failed probe, got %s", counts.State)
	}
	if !counts.OpenedAt.Equal(now) {
		t.Fatalf("expected cooldown restarted at %s, got %s", now, counts.OpenedAt)
	}
}
