package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"WhaleWatch/pkg/logger"
)

// RequestLogging logs each request at debug level, 5xx at error level and
// anything slower than slow at warn level.
func RequestLogging(l *logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			res := c.Response()
			fields := []logger.Field{
				logger.String("method", c.Request().Method),
				logger.String("route", routeOf(c)),
				logger.Int("status", res.Status),
				logger.Duration("duration_ms", elapsed),
				logger.Int("bytes", int(res.Size)),
				logger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			}

			switch {
			case res.Status >= 500:
				l.Error("http request failed", append(fields, logger.Error(err))...)
			case slow > 0 && elapsed >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}

// routeOf returns the matched route template, which keeps log and metric
// cardinality bounded.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
