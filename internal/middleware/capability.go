package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Capability string

const (
	ManageOptions Capability = "manage_options"
	UploadFiles   Capability = "upload_files"
	EditPosts     Capability = "edit_posts"
)

var roleCapabilities = map[string][]Capability{
	"admin":       {ManageOptions, UploadFiles, EditPosts},
	"editor":      {UploadFiles, EditPosts},
	"author":      {UploadFiles, EditPosts},
	"contributor": {EditPosts},
}

// Can reports whether role grants capability.
func Can(role string, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Forbidden writes the 403 body shared by every capability check.
func Forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, map[string]string{
		"code":  "rest_forbidden",
		"error": "Sorry, you are not allowed to do that.",
	})
}

// RequireCapability rejects actors whose role lacks capability with 403.
func RequireCapability(capability Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !Can(Role(c), capability) {
				return Forbidden(c)
			}
			return next(c)
		}
	}
}
