package middleware

import (
	"github.com/labstack/echo/v4"

	"hlstype/internal/options"
)

// RequestMemo gives every request its own option read memo.
func RequestMemo() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(options.WithMemo(req.Context())))
			return next(c)
		}
	}
}
