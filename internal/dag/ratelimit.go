package dag

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// RateLimiter caps concurrent tool calls globally and per resource key, and
// enforces a minimum spacing between dispatches against the same key. Spacing
// is per key, not global, so unrelated resources are never throttled by each
// other's cadence. It is the only engine state mutated concurrently by many
// in-flight tasks and carries its own synchronization.
type RateLimiter struct {
	global      *semaphore.Weighted
	perResource int64
	minInterval time.Duration

	mu    sync.RWMutex
	pools map[string]*semaphore.Weighted
	last  map[string]time.Time
}

// NewRateLimiter creates a limiter with the given permit pool sizes. Pools
// for resource keys are created lazily on first use.
func NewRateLimiter(globalPermits, perResourcePermits int, minInterval time.Duration) *RateLimiter {
	if globalPermits <= 0 {
		globalPermits = 10
	}
	if perResourcePermits <= 0 {
		perResourcePermits = 2
	}
	return &RateLimiter{
		global:      semaphore.NewWeighted(int64(globalPermits)),
		perResource: int64(perResourcePermits),
		minInterval: minInterval,
		pools:       make(map[string]*semaphore.Weighted),
		last:        make(map[string]time.Time),
	}
}

// Guard holds one global permit and, for keyed acquisitions, one resource
// permit. Release returns both; it is safe to call more than once.
type Guard struct {
	limiter *RateLimiter
	pool    *semaphore.Weighted
	once    sync.Once
}

// Release returns the held permits.
func (g *Guard) Release() {
	g.once.Do(func() {
		if g.pool != nil {
			g.pool.Release(1)
		}
		g.limiter.global.Release(1)
	})
}

// Acquire obtains one global permit and, when key is non-empty, one permit
// for that resource, then waits out the key's minimum inter-call spacing.
// The returned Guard must be released when the tool-call attempt finishes.
func (r *RateLimiter) Acquire(ctx context.Context, key string) (*Guard, error) {
	if err := r.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if key == "" {
		return &Guard{limiter: r}, nil
	}

	pool := r.pool(key)
	if err := pool.Acquire(ctx, 1); err != nil {
		r.global.Release(1)
		return nil, err
	}
	guard := &Guard{limiter: r, pool: pool}

	if wait := r.reserveSlot(key); wait > 0 {
		select {
		case <-ctx.Done():
			guard.Release()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return guard, nil
}

// pool returns the permit pool for a key, creating it on first use.
func (r *RateLimiter) pool(key string) *semaphore.Weighted {
	r.mu.RLock()
	p, ok := r.pools[key]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.pools[key]; !ok {
		p = semaphore.NewWeighted(r.perResource)
		r.pools[key] = p
	}
	return p
}

// reserveSlot claims the key's next dispatch slot and returns how long the
// caller must wait before using it. Claiming under the lock keeps concurrent
// holders of the same key spaced apart instead of dispatching together.
func (r *RateLimiter) reserveSlot(key string) time.Duration {
	if r.minInterval <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	next := r.last[key].Add(r.minInterval)
	if next.After(now) {
		r.last[key] = next
		return next.Sub(now)
	}
	r.last[key] = now
	return 0
}
