// Package ratelimit throttles relay clients per IP address.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const DefaultIdleTimeout = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter keeps one token bucket per client IP.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time
}

// NewIPLimiter allows perMinute requests per IP, with bursts of the same
// size. A non-positive perMinute returns nil, which allows everything.
func NewIPLimiter(perMinute int) *IPLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &IPLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idle:     DefaultIdleTimeout,
		now:      time.Now,
	}
}

// Allow reports whether ip may make another request now.
func (l *IPLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429. Requests for which
// skip returns true are not counted.
func (l *IPLimiter) Middleware(skip func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}
			if !l.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many searches, please try again later")
			}
			return next(c)
		}
	}
}

// Cleanup forgets IPs that have been idle longer than the idle timeout.
func (l *IPLimiter) Cleanup() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
		}
	}
}

// Len returns the number of tracked IPs.
func (l *IPLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (l *IPLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if l == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}
