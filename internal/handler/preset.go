package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hlstype/internal/preset"
)

type presetRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" validate:"required"`
	Features    []string `json:"features" validate:"required,min=1"`
	Description string   `json:"description"`
	FontFamily  string   `json:"fontFamily"`
}

// ListFeatures returns the OpenType feature catalog
func (h *Handler) ListFeatures(c echo.Context) error {
	return c.JSON(http.StatusOK, preset.Catalog())
}

// ListPresets returns the saved presets
func (h *Handler) ListPresets(c echo.Context) error {
	presets, err := h.presets.List(c.Request().Context())
	if err != nil {
		h.log.Error("failed to list presets", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load presets"})
	}
	return c.JSON(http.StatusOK, presets)
}

// SavePreset stores a new preset
func (h *Handler) SavePreset(c echo.Context) error {
	var req presetRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "missing_params", "Missing required parameters")
	}
	if err := c.Validate(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "missing_params", "Missing required parameters")
	}

	saved, err := h.presets.Add(c.Request().Context(), preset.Preset{
		ID:          req.ID,
		Name:        req.Name,
		Features:    req.Features,
		Description: req.Description,
		FontFamily:  req.FontFamily,
	})
	switch {
	case errors.Is(err, preset.ErrNoValidFeatures):
		return apiError(c, http.StatusBadRequest, "invalid_features", "No valid features provided")
	case errors.Is(err, preset.ErrInvalid):
		return apiError(c, http.StatusBadRequest, "missing_params", "Missing required parameters")
	case err != nil:
		h.log.Error("failed to save preset", zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "save_failed", "Failed to save preset")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"preset":  saved,
	})
}

// DeletePreset removes a preset by id
func (h *Handler) DeletePreset(c echo.Context) error {
	err := h.presets.Remove(c.Request().Context(), c.Param("id"))
	if errors.Is(err, preset.ErrNotFound) {
		return apiError(c, http.StatusNotFound, "preset_not_found", "Preset not found")
	}
	if err != nil {
		h.log.Error("failed to delete preset", zap.String("id", c.Param("id")), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "delete_failed", "Failed to delete preset")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
