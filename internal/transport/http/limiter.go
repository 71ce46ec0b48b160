package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/claytondukes/dibo-gems/internal/auth"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter hands out one token bucket per authenticated identity.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	retryAfter string
	now        func() time.Time

	mu          sync.Mutex
	buckets     map[string]*bucket
	lastCleanup time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per identity with the given burst.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	limit := rate.Inf
	retryAfter := 1
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
		retryAfter = max(1, (60+perMinute-1)/perMinute)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:      limit,
		burst:      burst,
		retryAfter: strconv.Itoa(retryAfter),
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

// Allow reports whether id may make another request now.
func (l *RateLimiter) Allow(id string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) > limiterIdleTTL {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.buckets, key)
			}
		}
		l.lastCleanup = now
	}

	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[id] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Limit wraps next so each identity is held to the limiter's rate. It must
// run after RequireSession.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if ok && !l.Allow(id.ID) {
			w.Header().Set("Retry-After", l.retryAfter)
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many lock requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
