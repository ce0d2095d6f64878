package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates payment initiation per caller identity (an IP or a
// customer token). Implementations fail open on backend errors so a
// limiter outage never blocks checkout.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is an in-process token bucket per key. Idle entries are
// evicted so the map does not grow for the life of the process; a
// multi-instance deployment should use the redis-backed limiter instead.
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry

	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	lastScan time.Time
	now      func() time.Time
}

func NewLocalLimiter(perMinute int, burst int) *LocalLimiter {
	return &LocalLimiter{
		entries: make(map[string]*bucketEntry),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &bucketEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.Allow(), nil
}

// evictIdle drops entries not seen within idleTTL. Scans are spaced out
// to once per minute; callers already hold the mutex.
func (l *LocalLimiter) evictIdle(now time.Time) {
	if now.Sub(l.lastScan) < time.Minute {
		return
	}
	l.lastScan = now
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.idleTTL {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of tracked identities.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
