package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetOrLoad_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	store := NewStore[string, string](Options{TTL: time.Minute})
	var calls atomic.Int32

	loader := func(context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoad(context.Background(), "same-key", loader)
			if err != nil {
				errCh <- err
				return
			}
			if v != "value" {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.July, 2, 20, 0, 0, 0, time.UTC)
	store := NewStore[string, int](Options{TTL: time.Minute})
	store.now = func() time.Time { return now }

	store.Set(context.Background(), "k", 7)
	if v, ok := store.Get(context.Background(), "k"); !ok || v != 7 {
		t.Fatalf("expected cached value, got %d %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := store.Get(context.Background(), "k"); ok {
		t.Fatalf("expected entry to expire at ttl")
	}
}

func TestStore_LoaderErrorIsNotCached(t *testing.T) {
	t.Parallel()

	store := NewStore[string, string](Options{TTL: time.Minute})
	boom := errors.New("boom")
	if _, err := store.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		return "", boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}

	v, err := store.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("expected second load to run, got %q %v", v, err)
	}
}

func TestStore_WindowKeysAndDelete(t *testing.T) {
	t.Parallel()

	type window struct{ year, quarter, week int }

	store := NewStore[window, int](Options{})
	ctx := context.Background()
	store.Set(ctx, window{2025, 3, 2}, 1)
	store.Set(ctx, window{2025, 3, 3}, 2)

	store.Delete(ctx, window{2025, 3, 2})
	if _, ok := store.Get(ctx, window{2025, 3, 2}); ok {
		t.Fatalf("expected deleted key gone")
	}
	if v, ok := store.Get(ctx, window{2025, 3, 3}); !ok || v != 2 {
		t.Fatalf("expected other window kept, got %d %v", v, ok)
	}
}

func TestStore_MaxEntriesEvictsSoonestExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.July, 2, 20, 0, 0, 0, time.UTC)
	store := NewStore[string, int](Options{TTL: time.Minute, MaxEntries: 2})
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Set(ctx, "2025Q3-W1", 1)
	now = now.Add(10 * time.Second)
	store.Set(ctx, "2025Q3-W2", 2)
	now = now.Add(10 * time.Second)
	store.Set(ctx, "2025Q3-W3", 3)

	if store.Len() != 2 {
		t.Fatalf("expected bounded size 2, got %d", store.Len())
	}
	if _, ok := store.Get(ctx, "2025Q3-W1"); ok {
		t.Fatalf("expected oldest entry evicted")
	}

	// Overwriting an existing key never evicts.
	store.Set(ctx, "2025Q3-W3", 4)
	if _, ok := store.Get(ctx, "2025Q3-W2"); !ok {
		t.Fatalf("overwrite must not evict other keys")
	}
}

func TestStore_MaxEntriesPrefersExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.July, 2, 20, 0, 0, 0, time.UTC)
	store := NewStore[string, int](Options{TTL: time.Minute, MaxEntries: 2})
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Set(ctx, "a", 1)
	store.Set(ctx, "b", 2)
	now = now.Add(2 * time.Minute)
	store.Set(ctx, "c", 3)

	if store.Len() != 1 {
		t.Fatalf("expected both expired entries dropped, got %d", store.Len())
	}
}

func TestStore_DeleteDuringLoadDiscardsStaleValue(t *testing.T) {
	t.Parallel()

	store := NewStore[string, string](Options{TTL: time.Minute})
	ctx := context.Background()
	loading := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string, 1)
	go func() {
		v, _ := store.GetOrLoad(ctx, "2025Q3-W2", func(context.Context) (string, error) {
			close(loading)
			<-release
			return "before upsert", nil
		})
		done <- v
	}()

	<-loading
	store.Delete(ctx, "2025Q3-W2")
	close(release)

	if got := <-done; got != "before upsert" {
		t.Fatalf("expected in-flight caller to get its load, got %q", got)
	}
	if _, ok := store.Get(ctx, "2025Q3-W2"); ok {
		t.Fatalf("expected load that raced a delete not to be cached")
	}

	v, err := store.GetOrLoad(ctx, "2025Q3-W2", func(context.Context) (string, error) {
		return "after upsert", nil
	})
	if err != nil || v != "after upsert" {
		t.Fatalf("expected reload after delete, got %q %v", v, err)
	}
	if v, ok := store.Get(ctx, "2025Q3-W2"); !ok || v != "after upsert" {
		t.Fatalf("expected fresh load cached, got %q %v", v, ok)
	}
}

var errUnexpectedValue = errors.New("unexpected loaded value")
