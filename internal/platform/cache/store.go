package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/platform/resilience"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Options bound a Store. A zero TTL keeps entries until deleted and a zero
// MaxEntries leaves the store unbounded.
type Options struct {
	TTL        time.Duration
	MaxEntries int
}

// Store is an in-process TTL map keyed by any comparable value.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
	opts    Options
	flight  resilience.SingleFlight[K, V]
	now     func() time.Time

	// generation moves on every Delete. Loads that started under an older
	// generation are returned to their callers but never stored.
	generation uint64
}

func NewStore[K comparable, V any](opts Options) *Store[K, V] {
	if opts.MaxEntries < 0 {
		opts.MaxEntries = 0
	}
	return &Store[K, V]{
		entries: make(map[K]entry[V]),
		opts:    opts,
		now:     time.Now,
	}
}

func (s *Store[K, V]) Get(_ context.Context, key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	if s.expired(e, s.now()) {
		delete(s.entries, key)
		return zero, false
	}
	return e.value, true
}

func (s *Store[K, V]) Set(_ context.Context, key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *Store[K, V]) setLocked(key K, value V) {
	now := s.now()
	e := entry[V]{value: value}
	if s.opts.TTL > 0 {
		e.expiresAt = now.Add(s.opts.TTL)
	}
	if _, exists := s.entries[key]; !exists && s.opts.MaxEntries > 0 && len(s.entries) >= s.opts.MaxEntries {
		s.evictLocked(now)
	}
	s.entries[key] = e
}

func (s *Store[K, V]) Delete(_ context.Context, key K) {
	s.mu.Lock()
	delete(s.entries, key)
	s.generation++
	s.mu.Unlock()
}

func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// GetOrLoad returns the cached value for key or runs loader once among
// concurrent callers. Loader errors are not cached.
func (s *Store[K, V]) GetOrLoad(ctx context.Context, key K, loader func(context.Context) (V, error)) (V, error) {
	var zero V
	if loader == nil {
		return zero, fmt.Errorf("loader is required")
	}
	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, _, err := s.flight.Do(ctx, key, func(ctx context.Context) (V, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}
		started := s.currentGeneration()
		loaded, err := loader(ctx)
		if err != nil {
			return zero, err
		}

		s.mu.Lock()
		if s.generation == started {
			s.setLocked(key, loaded)
		}
		s.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	return value, nil
}

func (s *Store[K, V]) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Store[K, V]) expired(e entry[V], now time.Time) bool {
	return s.opts.TTL > 0 && !e.expiresAt.After(now)
}

// evictLocked drops expired entries, or failing that the one closest to
// expiry. Without a TTL an arbitrary entry goes.
func (s *Store[K, V]) evictLocked(now time.Time) {
	var (
		victim    K
		victimAt  time.Time
		hasVictim bool
		dropped   bool
	)
	for key, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, key)
			dropped = true
			continue
		}
		if !hasVictim || e.expiresAt.Before(victimAt) {
			victim, victimAt, hasVictim = key, e.expiresAt, true
		}
	}
	if !dropped && hasVictim {
		delete(s.entries, victim)
	}
}
