package conv

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate    float64                                      // requests per second
	Burst   int                                          // max burst
	KeyFunc func(r *http.Request) string                 // default: remote IP
	OnLimit func(w http.ResponseWriter, r *http.Request) // default: 429 error body

	SweepInterval time.Duration // how often to prune idle limiters (default: 1m)
	MaxIdle       time.Duration // prune limiters idle longer than this (default: 5m)
}

// limiterPool keeps one token bucket per key. Idle entries are pruned
// during lookups so the map does not grow without bound.
type limiterPool struct {
	limit rate.Limit
	burst int

	sweepEvery time.Duration
	maxIdle    time.Duration

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Sub(p.lastSweep) >= p.sweepEvery {
		for k, e := range p.entries {
			if now.Sub(e.lastSeen) > p.maxIdle {
				delete(p.entries, k)
			}
		}
		p.lastSweep = now
	}

	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimit returns middleware that applies per-key rate limiting. A
// rejected request gets a Retry-After header and the standard error body
// (kind "rate-limited", status 429) unless OnLimit overrides the
// response.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteIP
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = func(w http.ResponseWriter, r *http.Request) {
			writeError(w, newError(kindRateLimited, "rate limit exceeded for %s", r.URL.Path))
		}
	}

	pool := &limiterPool{
		limit:      rate.Limit(cfg.Rate),
		burst:      cfg.Burst,
		sweepEvery: cfg.SweepInterval,
		maxIdle:    cfg.MaxIdle,
		entries:    make(map[string]*limiterEntry),
	}
	if pool.sweepEvery <= 0 {
		pool.sweepEvery = time.Minute
	}
	if pool.maxIdle <= 0 {
		pool.maxIdle = 5 * time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.get(cfg.KeyFunc(r)).Allow() {
				w.Header().Set("Retry-After", retryAfter(cfg.Rate))
				cfg.OnLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfter estimates the seconds until one token refills.
func retryAfter(perSecond float64) string {
	if perSecond <= 0 {
		return "1"
	}
	secs := 1 / perSecond
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatFloat(secs, 'f', 0, 64)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
