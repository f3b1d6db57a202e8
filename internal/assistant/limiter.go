// internal/assistant/limiter.go
package assistant

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userLimiter hands out one token bucket per user. A bucket left idle long
// enough to refill completely is dropped, since a fresh one behaves the same.
type userLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	buckets   map[string]*userBucket
	now       func() time.Time
}

func newUserLimiter(limit rate.Limit, burst int) *userLimiter {
	idle := time.Minute
	if limit > 0 {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &userLimiter{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		buckets: make(map[string]*userBucket),
		now:     time.Now,
	}
}

func (u *userLimiter) allow(userID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	if now.Sub(u.lastSweep) >= u.idle {
		u.sweep(now)
	}
	b, ok := u.buckets[userID]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(u.limit, u.burst)}
		u.buckets[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep must be called with mu held.
func (u *userLimiter) sweep(now time.Time) {
	for id, b := range u.buckets {
		if now.Sub(b.lastSeen) >= u.idle {
			delete(u.buckets, id)
		}
	}
	u.lastSweep = now
}

