package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_Do(t *testing.T) {
	var g SingleFlight[string, string]
	var counter int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			<-start
			val, _, err := g.Do(context.Background(), "account-1", func(context.Context) (string, error) {
				atomic.AddInt32(&counter, 1)
				time.Sleep(20 * time.Millisecond)
				return "token-v2", nil
			})
			if err != nil {
				t.Errorf("singleflight call failed: %v", err)
			}
			results[i] = val
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&counter); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
	for i, got := range results {
		if got != "token-v2" {
			t.Fatalf("worker %d got %q", i, got)
		}
	}
	if g.InFlight() != 0 {
		t.Fatalf("expected no in-flight keys after completion")
	}
}

func TestSingleFlight_WaiterHonoursContext(t *testing.T) {
	var g SingleFlight[string, int]
	release := make(chan struct{})
	leaderStarted := make(chan struct{})

	go func() {
		_, _, _ = g.Do(context.Background(), "k", func(context.Context) (int, error) {
			close(leaderStarted)
			<-release
			return 1, nil
		})
	}()
	<-leaderStarted

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, shared, err := g.Do(ctx, "k", func(context.Context) (int, error) {
		t.Errorf("waiter must not run fn")
		return 0, nil
	})
	close(release)

	if !shared {
		t.Fatalf("expected waiter to join the in-flight call")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSingleFlight_ErrorIsShared(t *testing.T) {
	var g SingleFlight[string, int]
	boom := errors.New("boom")

	_, shared, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
		return 0, boom
	})
	if shared {
		t.Fatalf("leader must not report shared")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestSingleFlight_DoDetachedOutlivesLeaderContext(t *testing.T) {
	var g SingleFlight[string, string]
	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})

	type outcome struct {
		val string
		err error
	}
	leader := make(chan outcome, 1)
	go func() {
		val, _, err := g.DoDetached(leaderCtx, "account-1", time.Second, func(ctx context.Context) (string, error) {
			close(started)
			if _, ok := ctx.Deadline(); !ok {
				return "", errors.New("expected a deadline on the detached call")
			}
			select {
			case <-release:
				return "token-v2", ctx.Err()
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
		leader <- outcome{val, err}
	}()
	<-started

	waiter := make(chan outcome, 1)
	go func() {
		val, _, err := g.DoDetached(context.Background(), "account-1", time.Second, func(context.Context) (string, error) {
			return "token-v2", nil
		})
		waiter <- outcome{val, err}
	}()

	cancelLeader()
	close(release)

	for name, ch := range map[string]chan outcome{"leader": leader, "waiter": waiter} {
		got := <-ch
		if got.err != nil || got.val != "token-v2" {
			t.Fatalf("%s: expected token-v2, got %q %v", name, got.val, got.err)
		}
	}
}

func TestSingleFlight_DoDetachedAppliesTimeout(t *testing.T) {
	var g SingleFlight[string, int]

	_, _, err := g.DoDetached(context.Background(), "k", 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
