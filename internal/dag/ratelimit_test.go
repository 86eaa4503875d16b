package dag

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiterPerResourceCap(t *testing.T) {
	r := NewRateLimiter(10, 2, 0)
	ctx := context.Background()

	var held, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.Acquire(ctx, "example.com")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			cur := held.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			held.Add(-1)
			g.Release()
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrent holders for one resource = %d, want <= 2", p)
	}
}

func TestRateLimiterGlobalCap(t *testing.T) {
	r := NewRateLimiter(3, 3, 0)
	ctx := context.Background()

	var held, peak atomic.Int64
	var wg sync.WaitGroup
	keys := []string{"a.test", "b.test", "c.test", "d.test"}
	for i := 0; i < 12; i++ {
		key := keys[i%len(keys)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.Acquire(ctx, key)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			cur := held.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			held.Add(-1)
			g.Release()
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrent holders = %d, want <= global cap 3", p)
	}
}

func TestRateLimiterMinIntervalSpacing(t *testing.T) {
	r := NewRateLimiter(10, 10, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		g, err := r.Acquire(ctx, "example.com")
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		g.Release()
	}
	// Three sequential acquisitions against one key must span at least
	// two full intervals.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("elapsed %s, want >= 100ms of spacing", elapsed)
	}
}

func TestRateLimiterEmptyKeySkipsPerResourceLimits(t *testing.T) {
	r := NewRateLimiter(10, 1, time.Hour)
	ctx := context.Background()

	// With a per-resource cap of 1 and an hour of spacing, two keyless
	// acquisitions would deadlock unless "" bypasses both.
	done := make(chan struct{})
	go func() {
		defer close(done)
		g1, err := r.Acquire(ctx, "")
		if err != nil {
			t.Errorf("acquire: %v", err)
			return
		}
		g2, err := r.Acquire(ctx, "")
		if err != nil {
			t.Errorf("acquire: %v", err)
			return
		}
		g2.Release()
		g1.Release()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("keyless acquisitions blocked on per-resource limits")
	}
}

func TestRateLimiterAcquireHonorsCancellation(t *testing.T) {
	r := NewRateLimiter(1, 1, 0)
	g, err := r.Acquire(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Acquire(ctx, "example.com"); err == nil {
		t.Fatal("expected cancellation error while the permit is held")
	}
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	r := NewRateLimiter(1, 1, 0)
	g, err := r.Acquire(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	g.Release()
	g.Release() // double release must not free a second permit

	g2, err := r.Acquire(context.Background(), "other.test")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	g2.Release()
}
