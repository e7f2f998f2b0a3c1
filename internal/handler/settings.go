package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetSettings returns the global settings
func (h *Handler) GetSettings(c echo.Context) error {
	s, err := h.settings.Get(c.Request().Context())
	if err != nil {
		h.log.Error("failed to load settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load settings"})
	}
	return c.JSON(http.StatusOK, s)
}

// UpdateSettings replaces the global settings; unknown keys are dropped
func (h *Handler) UpdateSettings(c echo.Context) error {
	var raw map[string]interface{}
	if err := c.Bind(&raw); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	s, err := h.settings.Save(c.Request().Context(), raw)
	if err != nil {
		h.log.Error("failed to save settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save settings"})
	}
	return c.JSON(http.StatusOK, s)
}
