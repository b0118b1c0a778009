package resilience

import (
	"context"
	"sync"
	"time"
)

// SingleFlight collapses concurrent calls sharing a key into one execution.
// Waiters may leave early when their own context ends; the leader keeps running.
type SingleFlight[K comparable, T any] struct {
	mu    sync.Mutex
	calls map[K]*flightCall[T]
}

type flightCall[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Do runs fn once per key among concurrent callers. shared is true for callers
// that received the leader's result instead of running fn themselves.
func (g *SingleFlight[K, T]) Do(ctx context.Context, key K, fn func(context.Context) (T, error)) (val T, shared bool, err error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*flightCall[T])
	}

	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero T
			return zero, true, ctx.Err()
		}
	}

	c := &flightCall[T]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn(ctx)
	return c.val, false, c.err
}

// DoDetached is Do with fn cut loose from the leader's cancellation, so one
// caller giving up cannot fail the waiters. timeout bounds fn instead.
func (g *SingleFlight[K, T]) DoDetached(ctx context.Context, key K, timeout time.Duration, fn func(context.Context) (T, error)) (T, bool, error) {
	return g.Do(ctx, key, func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(ctx)
	})
}

// InFlight reports how many keys currently have a running leader.
func (g *SingleFlight[K, T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
