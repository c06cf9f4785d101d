package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rryowa/medods_practice/internal/models"
	"github.com/rryowa/medods_practice/internal/util"
)

type clientLimiter struct {
	limiter      *rate.Limiter
	blockedUntil time.Time
	lastAccess   time.Time
}

// RateLimiter limits credential attempts per client. A client that runs out
// of tokens is rejected until its block time passes.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	blockTime time.Duration
	ttl       time.Duration
	now       func() time.Time
	log       *zap.SugaredLogger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(cfg *util.RateLimiterConfig, log *zap.SugaredLogger) *RateLimiter {
	rl := &RateLimiter{
		limit:     rate.Every(cfg.Interval / time.Duration(cfg.Limit)),
		burst:     cfg.Limit,
		blockTime: cfg.BlockTime,
		ttl:       2 * (cfg.Interval + cfg.BlockTime),
		now:       time.Now,
		log:       log,
		limiters:  make(map[string]*clientLimiter),
		stopCh:    make(chan struct{}),
	}

	go rl.cleanupLoop(cfg.Interval)

	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := clientKey(c)

			if wait, ok := rl.allow(key); !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				rl.log.Warnw("Rate limit exceeded", "client", key, "path", c.Path())
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}

			return next(c)
		}
	}
}

// allow reports whether key may proceed and, if not, how long it stays blocked.
func (rl *RateLimiter) allow(key string) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = now

	if now.Before(cl.blockedUntil) {
		return cl.blockedUntil.Sub(now), false
	}
	if !cl.limiter.AllowN(now, 1) {
		cl.blockedUntil = now.Add(rl.blockTime)
		return rl.blockTime, false
	}
	return 0, true
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > rl.ttl && !now.Before(cl.blockedUntil) {
			delete(rl.limiters, key)
		}
	}
}

// clientKey prefers the client id set by the API key check and falls back
// to the caller's address.
func clientKey(c echo.Context) string {
	if id, ok := c.Get(models.MwClientIDKey).(string); ok && id != "" {
		return id
	}
	return c.RealIP()
}
