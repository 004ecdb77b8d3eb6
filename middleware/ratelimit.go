package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/watt-toolkit/fuse/core"
	"github.com/watt-toolkit/fuse/env"
)

// RateLimit returns a per-key token bucket limiter.
//
// Keys default to REMOTE_ADDR. Limiters live in the middleware, so this
// only has an effect in hosts that serve many requests per process (SCGI,
// net/http); under plain CGI every process starts with a full bucket.
// Rejected requests get a Retry-After header and fail with
// core.ErrTooManyRequests, which the error handler turns into a 429 page.
//
// Example:
//
//	h = core.Chain(h, middleware.RateLimit(middleware.RateLimitConfig{
//	    RequestsPerSecond: 10,
//	    Burst:             5,
//	}))
func RateLimit(config RateLimitConfig) core.Middleware {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 100
	}
	if config.Burst <= 0 {
		config.Burst = 20
	}
	if config.KeyFunc == nil {
		config.KeyFunc = defaultKeyFunc
	}
	if config.MaxAge == 0 {
		config.MaxAge = 5 * time.Minute
	}
	if config.now == nil {
		config.now = time.Now
	}

	store := &limiterStore{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(config.RequestsPerSecond),
		burst:    config.Burst,
		maxAge:   config.MaxAge,
		now:      config.now,
	}

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) (core.Result, error) {
			limiter := store.get(config.KeyFunc(c))

			r := limiter.ReserveN(store.now(), 1)
			if delay := r.DelayFrom(store.now()); delay > 0 {
				r.CancelAt(store.now())
				c.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				return core.Result{}, core.ErrTooManyRequests
			}
			return next(c)
		}
	}
}

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per key (default: 100).
	RequestsPerSecond float64

	// Burst is the bucket size (default: 20).
	Burst int

	// KeyFunc picks the bucket for a request (default: REMOTE_ADDR).
	KeyFunc func(*core.Context) string

	// MaxAge is how long an idle bucket is kept (default: 5 minutes).
	MaxAge time.Duration

	now func() time.Time
}

func defaultKeyFunc(c *core.Context) string {
	if addr, _ := c.Var(env.RemoteAddr); addr != "" {
		return addr
	}
	return "default"
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one limiter per key and sweeps idle ones lazily.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	maxAge    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.maxAge {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > s.maxAge {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
