package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientIDHeader lets callers behind a shared address identify themselves
// to the rate limiter.
const ClientIDHeader = "X-Client-ID"

// RateLimiter throttles requests per client with a token bucket each.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	keyFunc func(*http.Request) string
	now     func() time.Time

	limiters sync.Map // client key -> *cachedLimiter
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithTTL sets how long an idle client's bucket is kept before it is rebuilt.
func WithTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) { rl.ttl = ttl }
}

// WithKeyFunc overrides how a request is mapped to a client.
func WithKeyFunc(fn func(*http.Request) string) RateLimiterOption {
	return func(rl *RateLimiter) { rl.keyFunc = fn }
}

// NewRateLimiter allows limit requests per second with the given burst per client.
// A limit of 0 means unlimited.
func NewRateLimiter(limit float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(limit),
		burst:   burst,
		ttl:     5 * time.Minute,
		keyFunc: ClientKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// RateLimit=0 means unlimited
			if rl.limit > 0 && !rl.limiterFor(rl.keyFunc(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()
	if v, ok := rl.limiters.Load(key); ok {
		cached := v.(*cachedLimiter)
		if now.Before(cached.expiresAt) {
			return cached.limiter
		}
		// expired, need to create new
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Store(key, &cachedLimiter{
		limiter:   limiter,
		expiresAt: now.Add(rl.ttl),
	})
	return limiter
}

// ClientKey identifies the caller by X-Client-ID, falling back to the remote host.
func ClientKey(r *http.Request) string {
	if id := r.Header.Get(ClientIDHeader); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
