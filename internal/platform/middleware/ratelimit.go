package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/edtriage/triage/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
	}
}

// limiterStore holds one token bucket per caller.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      RateLimitConfig
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.BurstSize)
		s.limiters[key] = l
	}
	return l
}

// RateLimit throttles each caller with a token bucket. Authenticated callers
// are keyed by staff id, anonymous ones by client IP. Every triage
// submission and free-text classification costs a model or embedding call,
// so the limit is applied to the whole API group.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	store := &limiterStore{limiters: make(map[string]*rate.Limiter), cfg: cfg}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if p, ok := auth.PrincipalFromContext(c.Request().Context()); ok && p.StaffID != uuid.Nil {
				key = "staff:" + p.StaffID.String()
			}

			l := store.get(key)
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if !l.Allow() {
				r := l.Reserve()
				wait := r.Delay()
				r.Cancel()
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(wait.Seconds())))))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
