package worker

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused client limiter is kept
const idleLimiterTTL = 10 * time.Minute

// Limiter implements per-client rate limiting. Clients are identified by an
// arbitrary key, typically the remote address of an HTTP request.
type Limiter struct {
	limiters     *gocache.Cache
	overrides    map[string]*rate.Limiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     gocache.New(idleLimiterTTL, idleLimiterTTL),
		overrides:    make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait waits for rate limit clearance for the given client
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Allow checks if a request is allowed without waiting
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// getLimiter returns the rate limiter for a client, refreshing its idle expiry
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.overrides[key]; ok {
		return limiter
	}

	if v, found := l.limiters.Get(key); found {
		limiter := v.(*rate.Limiter)
		l.limiters.SetDefault(key, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters.SetDefault(key, limiter)
	return limiter
}

// SetClientRate sets a custom rate limit for a specific client; it never expires
func (l *Limiter) SetClientRate(key string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.overrides[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Clients returns the number of clients currently tracked
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiters.ItemCount() + len(l.overrides)
}
