package handler

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// apiError writes the fixed client-facing error body.
func apiError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]string{
		"code":  code,
		"error": message,
	})
}

func cssResponse(c echo.Context, body string) error {
	return c.Blob(http.StatusOK, "text/css; charset=UTF-8", []byte(body))
}

// scriptExtensions may never be served from the plugin's uploads directory.
var scriptExtensions = map[string]bool{
	".php": true, ".php3": true, ".php4": true, ".php5": true, ".php7": true,
	".phtml": true, ".phps": true, ".phar": true, ".pl": true, ".py": true,
	".cgi": true, ".sh": true, ".asp": true, ".aspx": true, ".jsp": true,
}

// GuardUploads refuses script files and directory listings below the
// given URL prefix.
func GuardUploads(prefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := c.Request().URL.Path
			if !strings.HasPrefix(p, prefix) {
				return next(c)
			}
			if strings.HasSuffix(p, "/") || scriptExtensions[strings.ToLower(path.Ext(p))] || path.Base(p) == ".htaccess" {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
			}
			return next(c)
		}
	}
}
