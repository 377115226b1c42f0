// Package ratelimit throttles outbound requests per upstream host using token buckets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// KeyedRateLimiter gives every key (usually a host name) its own token bucket.
// Buckets that stay unused for longer than the idle timeout are evicted.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*entry
	overrides map[string]rate.Limit
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a keyed limiter allowing rps requests per second per key with the given burst.
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters:  make(map[string]*entry),
		overrides: make(map[string]rate.Limit),
		limit:     rate.Limit(rps),
		burst:     burst,
		idle:      10 * time.Minute,
		now:       time.Now,
		done:      make(chan struct{}),
	}

	go krl.cleanup(time.Minute)

	return krl
}

// SetLimit overrides the rate for one key. MyAnimeList, for instance, tolerates
// less traffic than the scrape mirrors.
func (krl *KeyedRateLimiter) SetLimit(key string, rps float64) {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	krl.overrides[key] = rate.Limit(rps)
	if e, ok := krl.limiters[key]; ok {
		e.limiter.SetLimit(rate.Limit(rps))
	}
}

// Allow reports whether a request for key may happen now without waiting.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// Len returns the number of live buckets.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return len(krl.limiters)
}

func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	e, ok := krl.limiters[key]
	if !ok {
		limit := krl.limit
		if override, has := krl.overrides[key]; has {
			limit = override
		}
		e = &entry{limiter: rate.NewLimiter(limit, krl.burst)}
		krl.limiters[key] = e
	}
	e.lastUsed = krl.now()
	return e.limiter
}

// Stop shuts down the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.evictIdle()
		}
	}
}

func (krl *KeyedRateLimiter) evictIdle() {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	cutoff := krl.now().Add(-krl.idle)
	for key, e := range krl.limiters {
		if e.lastUsed.Before(cutoff) {
			delete(krl.limiters, key)
		}
	}
}
