package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hlstype/internal/metrics"
	"hlstype/internal/transient"
)

// PrefixRateLimit prefixes the per-actor write counters.
const PrefixRateLimit = "hls_rate_limit_"

// RateLimit allows each actor limit write requests (POST, PUT, PATCH,
// DELETE) per window. Every allowed write restarts the window. A limit of
// zero disables the check.
func RateLimit(cache *transient.Cache, limit int, window time.Duration, m *metrics.Metrics, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}
			switch c.Request().Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				return next(c)
			}

			user := Username(c)
			if n, ok := cache.Hit(PrefixRateLimit+user, limit, window); !ok {
				m.RecordRateLimited()
				log.Warn("rate limit exceeded", zap.String("user", user), zap.Int("requests", n))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"code":  "rate_limit_exceeded",
					"error": "Too many requests. Please try again later.",
				})
			}
			return next(c)
		}
	}
}
