package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key, e.g. per client address.
type Limiter struct {
	mu     sync.Mutex
	m      map[string]*bucket
	rate   rate.Limit
	burst  int
	maxAge time.Duration
}

// New creates a limiter allowing refillPerSec events per second per key with
// bursts up to capacity. Buckets idle for longer than maxAge are dropped.
func New(capacity int, refillPerSec float64, maxAge time.Duration) *Limiter {
	return &Limiter{
		m:      make(map[string]*bucket),
		rate:   rate.Limit(refillPerSec),
		burst:  capacity,
		maxAge: maxAge,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rate, l.burst)}
		l.m[key] = b
	}
	b.lastSeen = now
	l.sweep(now)
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// sweep must be called with l.mu held.
func (l *Limiter) sweep(now time.Time) {
	if l.maxAge <= 0 {
		return
	}
	for k, b := range l.m {
		if now.Sub(b.lastSeen) > l.maxAge {
			delete(l.m, k)
		}
	}
}
