package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raaihank/secureclaw/internal/config"
)

// RateLimiter throttles requests per client IP with a token bucket each
type RateLimiter struct {
	mu      sync.RWMutex
	enabled bool
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	buckets map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	r := &RateLimiter{
		buckets: make(map[string]*clientBucket),
		now:     time.Now,
	}
	r.Update(cfg)
	return r
}

// Update applies new limits to existing and future buckets.
func (r *RateLimiter) Update(cfg config.RateLimitConfig) {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMin
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled = cfg.Enabled && cfg.RequestsPerMin > 0
	r.limit = rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
	r.burst = burst
	r.idleTTL = idleTTL

	now := r.now()
	for _, b := range r.buckets {
		b.limiter.SetLimitAt(now, r.limit)
		b.limiter.SetBurstAt(now, r.burst)
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	r.mu.RLock()
	enabled := r.enabled
	r.mu.RUnlock()
	if !enabled {
		return true
	}

	bucket := r.getBucket(clientIP)
	now := r.now()

	bucket.mu.Lock()
	bucket.lastSeen = now
	bucket.mu.Unlock()

	return bucket.limiter.AllowN(now, 1)
}

// getBucket gets or creates a token bucket for a client IP
func (r *RateLimiter) getBucket(clientIP string) *clientBucket {
	r.mu.RLock()
	bucket, exists := r.buckets[clientIP]
	r.mu.RUnlock()

	if exists {
		return bucket
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := r.buckets[clientIP]; exists {
		return bucket
	}

	bucket = &clientBucket{
		limiter:  rate.NewLimiter(r.limit, r.burst),
		lastSeen: r.now(),
	}
	r.buckets[clientIP] = bucket
	return bucket
}

// Clients returns the number of tracked client buckets
func (r *RateLimiter) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}

// CleanupIdle removes buckets unused for longer than the idle TTL and
// returns how many were removed.
func (r *RateLimiter) CleanupIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	removed := 0
	for ip, bucket := range r.buckets {
		bucket.mu.Lock()
		idle := bucket.lastSeen.Before(cutoff)
		bucket.mu.Unlock()
		if idle {
			delete(r.buckets, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine removes idle buckets periodically until ctx is done.
// The period is half the idle TTL, re-read after every pass so reloads apply.
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		timer := time.NewTimer(r.cleanupInterval())
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				r.CleanupIdle()
				timer.Reset(r.cleanupInterval())
			}
		}
	}()
}

func (r *RateLimiter) cleanupInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.idleTTL < 2*time.Millisecond {
		return time.Millisecond
	}
	return r.idleTTL / 2
}
