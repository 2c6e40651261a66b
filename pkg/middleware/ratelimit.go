package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
		BurstSize:         20,
	}
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Config() *RateLimitConfig
}

// RateLimiter is an in-process token bucket limiter
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Config returns the limiter configuration
func (rl *RateLimiter) Config() *RateLimitConfig { return rl.config }

func (rl *RateLimiter) capacity() float64 {
	return float64(rl.config.RequestsPerWindow + rl.config.BurstSize)
}

// Allow takes a token from the key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.capacity(), lastUpdate: now}
		rl.buckets[key] = b
	}

	// refill proportionally to elapsed time
	rate := float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	b.tokens += now.Sub(b.lastUpdate).Seconds() * rate
	if b.tokens > rl.capacity() {
		b.tokens = rl.capacity()
	}
	b.lastUpdate = now

	if b.tokens < 1 {
		return false, 0, nil
	}
	b.tokens--
	return true, int(b.tokens), nil
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per organization, or per client
// address for unauthenticated requests
type RateLimitMiddleware struct {
	limiter  Limiter
	failOpen bool
}

// NewRateLimitMiddleware creates a new rate limit middleware. With failOpen
// set, limiter errors let the request through.
func NewRateLimitMiddleware(limiter Limiter, failOpen bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, failOpen: failOpen}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + auth.ClientIP(r)
		if authCtx := GetAuthContext(r); authCtx != nil {
			key = "org:" + authCtx.OrganizationID
		}

		cfg := m.limiter.Config()
		allowed, remaining, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable")
			if !m.failOpen {
				httputil.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", cfg.WindowDuration.Seconds()))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
