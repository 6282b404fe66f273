package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleLimiterTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per super user and client address.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	burst    int
	refill   rate.Limit
	stop     chan struct{}
}

// NewRateLimiter allows burst requests per key, refilled at refillPerSecond.
// A zero refill never gives tokens back.
func NewRateLimiter(burst, refillPerSecond int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		burst:    burst,
		refill:   rate.Limit(refillPerSecond),
		stop:     make(chan struct{}),
	}
	go rl.evictIdle()
	return rl
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.refill, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()
	return v.limiter.Allow()
}

// Stop ends the eviction goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(idleLimiterTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if now.Sub(v.lastSeen) > idleLimiterTTL {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) retryAfter() string {
	if rl.refill <= 0 {
		return strconv.Itoa(int(idleLimiterTTL.Seconds()))
	}
	return strconv.Itoa(max(1, int(float64(rl.burst)/float64(rl.refill))))
}

// RateLimitMiddleware answers 429 once a super user drains its bucket.
// Must run after APIKeyAuth so the user is known.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	retryAfter := limiter.retryAfter()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			key := GetUserFromContext(r.Context()) + ":" + clientIP(r)
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", retryAfter)
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded", "please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
