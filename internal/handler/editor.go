package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hlstype/internal/fontkit"
	authmw "hlstype/internal/middleware"
	"hlstype/internal/preset"
)

// EditorData is everything the block editor needs on load.
type EditorData struct {
	Presets  []preset.Preset   `json:"presets"`
	Features []preset.Feature  `json:"features"`
	Fonts    []fontkit.FontKit `json:"fonts"`
	RestURL  string            `json:"restUrl"`

	// Families lists every family the kits declare, in kit order.
	Families []string `json:"families"`
	// PresetSettings maps preset ids to their font-feature-settings value.
	PresetSettings map[string]string `json:"presetSettings"`
}

func (h *Handler) buildEditorData(ctx context.Context) (any, error) {
	presets, err := h.presets.List(ctx)
	if err != nil {
		return nil, err
	}
	kits, err := h.kits.List(ctx)
	if err != nil {
		return nil, err
	}

	families := []string{}
	seen := map[string]struct{}{}
	for _, k := range kits {
		for _, f := range k.Families() {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				families = append(families, f)
			}
		}
	}
	featureSettings := make(map[string]string, len(presets))
	for _, p := range presets {
		if _, ok := featureSettings[p.ID]; !ok {
			featureSettings[p.ID] = preset.FeatureSettings(p.Features)
		}
	}

	return EditorData{
		Presets:        presets,
		Features:       preset.Catalog(),
		Fonts:          kits,
		RestURL:        h.cfg.SiteURL + "/api/",
		Families:       families,
		PresetSettings: featureSettings,
	}, nil
}

// EditorBootstrap returns the cached editor payload for the current user
func (h *Handler) EditorBootstrap(c echo.Context) error {
	data, err := h.css.EditorBootstrap(c.Request().Context(), authmw.Username(c), h.buildEditorData)
	if err != nil {
		h.log.Error("failed to build editor data", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load editor data"})
	}
	return c.JSON(http.StatusOK, data)
}
