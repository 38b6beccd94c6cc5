package auth

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one rate-limit check, carrying the window
// state surfaced to callers via response headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Used      int
	// Reset is the start of the next minute bucket.
	Reset time.Time
}

// Limiter applies a sliding one-minute window per caller key. Allow
// consumes one slot when the window has capacity.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
	Close() error
}

// bucket retention beyond the active minute, to tolerate clock skew at
// the boundary.
const bucketRetention = 2 * time.Minute

// nextWindow returns the start of the minute bucket after now.
func nextWindow(now time.Time) time.Time {
	return time.Unix((now.Unix()/60+1)*60, 0)
}

type bucketKey struct {
	key    string
	minute int64
}

// MemoryLimiter is a process-local Limiter. Correct for a single
// instance; multi-instance deployments should use the Redis-backed
// limiter so all workers share window state.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]int
	now     func() time.Time // test override
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[bucketKey]int),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	now := l.now()
	minute := now.Unix() / 60
	reset := nextWindow(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(minute)

	bk := bucketKey{key: key, minute: minute}
	used := l.buckets[bk]
	if used >= limit {
		return Decision{Limit: limit, Used: used, Reset: reset}, nil
	}
	used++
	l.buckets[bk] = used
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - used,
		Used:      used,
		Reset:     reset,
	}, nil
}

// prune drops buckets older than the retention window. Called with the
// lock held.
func (l *MemoryLimiter) prune(currentMinute int64) {
	cutoff := currentMinute - int64(bucketRetention/time.Minute)
	for bk := range l.buckets {
		if bk.minute < cutoff {
			delete(l.buckets, bk)
		}
	}
}

func (l *MemoryLimiter) Close() error { return nil }
