package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "hlstype/internal/middleware"
	"hlstype/internal/version"
)

// Routes mounts the API under /api.
func (h *Handler) Routes(e *echo.Echo) {
	api := e.Group("/api")
	api.Use(authmw.RequestMemo())

	// Public routes (no auth required)
	api.POST("/auth/login", h.Login)
	api.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, version.GetInfo())
	})

	// Protected routes (auth required)
	protected := api.Group("")
	protected.Use(authmw.JWTAuth(h.cfg.JWTSecret))

	limit := authmw.RateLimit(h.cache, h.cfg.RateLimit.WritesPerMinute, time.Minute, h.metrics, h.log)
	edit := authmw.RequireCapability(authmw.EditPosts)
	upload := authmw.RequireCapability(authmw.UploadFiles)
	manage := authmw.RequireCapability(authmw.ManageOptions)

	protected.GET("/auth/me", h.GetCurrentUser)

	// Features & presets
	protected.GET("/features", h.ListFeatures, edit)
	protected.GET("/presets", h.ListPresets, edit)
	protected.POST("/presets", h.SavePreset, edit, limit)
	protected.DELETE("/presets/:id", h.DeletePreset, edit, limit)

	// Font kits
	protected.GET("/fonts", h.ListFonts, edit)
	protected.GET("/fonts/:id", h.GetFontKit, edit)
	protected.POST("/fonts", h.UploadFontKit, upload, limit)
	protected.DELETE("/fonts/:id", h.DeleteFontKit, upload, limit)

	// Stylesheets
	protected.GET("/css/:context", h.ContextCSS, edit)
	protected.POST("/pages/:id/css", h.PageCSS, edit)
	protected.GET("/editor/bootstrap", h.EditorBootstrap, edit)

	// Settings
	protected.GET("/settings", h.GetSettings, manage)
	protected.PUT("/settings", h.UpdateSettings, manage, limit)

	// Backup API
	protected.POST("/backup/:target", h.RunBackup, manage)
	protected.GET("/backup/list/:target", h.ListBackups, manage)
}
