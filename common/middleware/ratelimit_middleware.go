package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/common/ratelimit"
)

// Limiter is the subset of ratelimit.RateLimiter the middleware needs
type Limiter interface {
	CheckGlobalLimit(ctx context.Context, limit int64) (*ratelimit.Result, error)
	CheckUserLimit(ctx context.Context, username string, limit int64, windowSec int) (*ratelimit.Result, error)
}

// UsernameFunc extracts the acting planner from a request
type UsernameFunc func(c echo.Context) string

// GlobalRateLimitMiddleware checks the service-wide rate limit.
// Limiter failures let the request through.
func GlobalRateLimitMiddleware(limiter Limiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result, err := limiter.CheckGlobalLimit(c.Request().Context(), limit)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return tooManyRequests(c, "global_rate_limit_exceeded", result, nil)
			}

			return next(c)
		}
	}
}

// UserRateLimitMiddleware checks per-planner limits.
// Requests without a username are not limited per user.
func UserRateLimitMiddleware(limiter Limiter, limit int64, username UsernameFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := username(c)
			if user == "" {
				return next(c)
			}

			result, err := limiter.CheckUserLimit(c.Request().Context(), user, limit, 60)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return tooManyRequests(c, "user_rate_limit_exceeded", result, map[string]interface{}{
					"username": user,
				})
			}

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, code string, result *ratelimit.Result, extra map[string]interface{}) error {
	details := map[string]interface{}{
		"limit":               result.Limit,
		"window":              "60 seconds",
		"current_count":       result.CurrentCount,
		"retry_after_seconds": result.RetryAfterSeconds,
	}
	for k, v := range extra {
		details[k] = v
	}

	return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
		"error":   code,
		"details": details,
	})
}
