package middleware

import (
	"net/http"
	"sync"
	"time"
)

// bucket is a token bucket with lazy refill: tokens accrue on demand based on
// the elapsed time since the previous take.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

func (b *bucket) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// limiter keeps one bucket per caller key. Buckets idle for ten minutes are
// evicted so keys from long-gone clients do not accumulate.
type limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	rate     int
}

func newLimiter(capacity, rate int) *limiter {
	l := &limiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		rate:     rate,
	}
	go l.evictLoop()
	return l
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:   float64(l.capacity),
			capacity: float64(l.capacity),
			rate:     float64(l.rate),
			last:     time.Now(),
		}
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.take()
}

func (l *limiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, b := range l.buckets {
			b.mu.Lock()
			stale := b.last.Before(cutoff)
			b.mu.Unlock()
			if stale {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimitMiddleware limits request rate per authenticated client and
// remote address. capacity is the burst size, rate the refill per second.
// Probe endpoints are exempt.
func RateLimitMiddleware(capacity, rate int) func(http.Handler) http.Handler {
	lim := newLimiter(capacity, rate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := GetClientFromContext(r.Context()) + ":" + r.RemoteAddr
			if !lim.allow(key) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
